package session

// Valid reports whether the session may produce output: parsing succeeded,
// every input is open with the access the operation needs, the operation is
// known, single-input operations have one input and an output filename is
// present where one is required.
func (s *Session) Valid() bool {
	op := s.cfg.Operation
	return s.valid &&
		(op.IsReport() || s.authorized) &&
		s.registry.Len() > 0 &&
		s.inputsOpened() &&
		firstOperation <= op && op <= finalOperation &&
		(!op.singleInput() || s.registry.Len() == 1) &&
		(!op.needsOutputFilename() || s.cfg.OutputFilename != "")
}

func (s *Session) inputsOpened() bool {
	for i := 0; i < s.registry.Len(); i++ {
		if !s.registry.Doc(i).Opened() {
			return false
		}
	}
	return true
}
