package realtime

import (
	"Chatline/internal/api/dto"
	"Chatline/internal/pkg/consts"

	"github.com/goccy/go-json"
)

// Frame 长连接帧，上下行格式一致
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EncodeFrame 编码一帧，payload 为 nil 时省略
func EncodeFrame(event, requestID string, payload any) ([]byte, error) {
	f := Frame{Type: event, RequestID: requestID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		f.Payload = raw
	}
	return json.Marshal(f)
}

// DecodeFrame 解析客户端帧，缺少 type 视为格式错误
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, err
	}
	if f.Type == "" {
		return Frame{}, errMissingType
	}
	return f, nil
}

// DecodePayload 将载荷解析到 v
func (f Frame) DecodePayload(v any) error {
	if len(f.Payload) == 0 {
		return errMissingPayload
	}
	return json.Unmarshal(f.Payload, v)
}

func encodeError(requestID, code, message string) []byte {
	b, _ := EncodeFrame(consts.EventError, requestID, dto.ErrorPayload{Code: code, Message: message})
	return b
}
