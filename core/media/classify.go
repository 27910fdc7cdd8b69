package media

import (
	"path"
	"strings"
)

// CacheClass 决定 Cache-Control 策略，也决定是否允许部分响应
type CacheClass int

const (
	ClassGeneric CacheClass = iota
	ClassMedia
	ClassImage
)

func (c CacheClass) String() string {
	switch c {
	case ClassMedia:
		return "media"
	case ClassImage:
		return "image"
	default:
		return "generic"
	}
}

// CacheControl 图片缓存 24 小时，其余 1 小时
func (c CacheClass) CacheControl() string {
	if c == ClassImage {
		return "public, max-age=86400"
	}
	return "public, max-age=3600"
}

// ContentType 扩展名分类结果
type ContentType struct {
	MIME  string
	Class CacheClass
}

const (
	mimeJSON    = "application/json"
	mimeDefault = "application/octet-stream"
)

var contentTypes = map[string]ContentType{
	"mp3":  {"audio/mpeg", ClassMedia},
	"wav":  {"audio/wav", ClassMedia},
	"ogg":  {"audio/ogg", ClassMedia},
	"flac": {"audio/flac", ClassMedia},
	"aac":  {"audio/aac", ClassMedia},
	"m4a":  {"audio/mp4", ClassMedia},
	"opus": {"audio/opus", ClassMedia},
	"jpg":  {"image/jpeg", ClassImage},
	"jpeg": {"image/jpeg", ClassImage},
	"png":  {"image/png", ClassImage},
	"gif":  {"image/gif", ClassImage},
	"webp": {"image/webp", ClassImage},
	"json": {mimeJSON, ClassGeneric},
}

// Classify 按扩展名查表，接受 "mp3"、".mp3"、".MP3"
func Classify(ext string) ContentType {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return ContentType{MIME: mimeDefault, Class: ClassGeneric}
}

// ClassifyPath 对斜杠分隔的路径取扩展名后分类
func ClassifyPath(name string) ContentType {
	return Classify(path.Ext(name))
}

// Streamable 只有音频内容支持 Range
func (c ContentType) Streamable() bool { return c.Class == ClassMedia }

// Buffered JSON 附属文件整体读入内存返回
func (c ContentType) Buffered() bool { return c.MIME == mimeJSON }
