package model

// RegistrationState is the free-form record kept for one social-media
// identity under state.regs[platform][username].
type RegistrationState map[string]any

const (
	FieldPlatform = "platform"
	FieldUsername = "username"
	FieldRegs     = "regs"
	FieldStaging  = "staging"
)

func (r RegistrationState) Platform() string {
	s, _ := r[FieldPlatform].(string)
	return s
}

func (r RegistrationState) Username() string {
	s, _ := r[FieldUsername].(string)
	return s
}
