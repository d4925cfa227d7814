package dto

// Response 统一响应体，HTTP 状态码与 Code 一致
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}
