package response

// Resp is the envelope every endpoint answers with. Key is the stable,
// untranslated message identifier; Msg is Key rendered for the caller.
type Resp struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Key  string      `json:"key,omitempty"`
	Data interface{} `json:"data"`
}

// New guarantees data is never null.
func New(code int, key, msg string, data interface{}) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Key: key, Data: data}
}

func OK(data interface{}) Resp {
	return New(CodeOK, "", "OK", data)
}

func Error(code int, key, msg string) Resp {
	return New(code, key, msg, struct{}{})
}
