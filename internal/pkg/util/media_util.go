package util

import (
	"Chatline/internal/pkg/consts"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// GetSafeContentType 按文件内容嗅探 MIME，读取后回到起始位置
func GetSafeContentType(r io.ReadSeeker) (string, error) {
	mt, err := mimetype.DetectReader(r)
	if err != nil {
		return "", err
	}
	if _, err = r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return mt.String(), nil
}

// MediaTypeOf MIME 到媒体类别，不允许的类型返回空串
func MediaTypeOf(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, consts.MimePrefixImage+"/"):
		return consts.MediaTypeImage
	case strings.HasPrefix(contentType, consts.MimePrefixVideo+"/"):
		return consts.MediaTypeVideo
	case strings.HasPrefix(contentType, "application/pdf"),
		strings.HasPrefix(contentType, "application/zip"),
		strings.HasPrefix(contentType, "text/plain"),
		strings.HasPrefix(contentType, "application/vnd.openxmlformats-officedocument"),
		strings.HasPrefix(contentType, "application/msword"):
		return consts.MediaTypeFile
	default:
		return ""
	}
}
