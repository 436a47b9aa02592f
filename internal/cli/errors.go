package cli

// ErrorCode classifies failures surfaced to the user.
type ErrorCode string

const (
	InvalidConfig ErrorCode = "InvalidConfig"
	RunFailed     ErrorCode = "RunFailed"
	WriteFailed   ErrorCode = "WriteFailed"
)

func (c ErrorCode) ErrorCode() string {
	return string(c)
}
