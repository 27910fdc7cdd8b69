package media

import (
	"fmt"
	"strconv"
	"strings"
)

// ByteRange 闭区间字节范围，满足 0 <= Start <= End < Total
type ByteRange struct {
	Start uint64
	End   uint64
	Total uint64
}

// Length 返回区间字节数
func (r ByteRange) Length() uint64 { return r.End - r.Start + 1 }

// ContentRange 生成 Content-Range 头的值
func (r ByteRange) ContentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, r.Total)
}

// UnsatisfiedContentRange 416 响应使用的 Content-Range 值
func UnsatisfiedContentRange(total uint64) string {
	return fmt.Sprintf("bytes */%d", total)
}

const rangeUnit = "bytes="

// NegotiateRange 解析 Range 头
//
// 返回 nil, nil 表示返回整个文件。规则：
//   - 非音频内容、缺失头、单位不是 bytes 时忽略 Range
//   - 多个区间只取第一个
//   - 起点缺失或无法解析视为 0；终点缺失、无法解析或越界时取 total-1
//   - 起点 >= total 返回 ErrUnsatisfiableRange
//   - 终点 < 起点时忽略 Range
func NegotiateRange(header string, total uint64, ct ContentType) (*ByteRange, error) {
	header = strings.TrimSpace(header)
	if header == "" || !ct.Streamable() {
		return nil, nil
	}
	if len(header) < len(rangeUnit) || !strings.EqualFold(header[:len(rangeUnit)], rangeUnit) {
		return nil, nil
	}

	rangeSet := header[len(rangeUnit):]
	if i := strings.IndexByte(rangeSet, ','); i >= 0 {
		rangeSet = rangeSet[:i]
	}
	startStr, endStr, _ := strings.Cut(rangeSet, "-")

	start, err := strconv.ParseUint(strings.TrimSpace(startStr), 10, 64)
	if err != nil {
		start = 0
	}
	if start >= total {
		return nil, ErrUnsatisfiableRange
	}

	end := total - 1
	if e, err := strconv.ParseUint(strings.TrimSpace(endStr), 10, 64); err == nil && e < end {
		end = e
	}
	if end < start {
		return nil, nil
	}

	return &ByteRange{Start: start, End: end, Total: total}, nil
}
