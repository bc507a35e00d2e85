package services

import "fmt"

// Warning records a degraded step that did not abort the pipeline.
type Warning struct {
	Stage   string `json:"stage"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Stage == "" {
		return fmt.Sprintf("%s: %s", w.Code, w.Message)
	}
	return fmt.Sprintf("%s/%s: %s", w.Stage, w.Code, w.Message)
}

// NewWarning builds a Warning, appending err's text to message when present.
func NewWarning(stage, code, message string, err error) Warning {
	if err != nil {
		message = fmt.Sprintf("%s: %v", message, err)
	}
	return Warning{Stage: stage, Code: code, Message: message}
}
