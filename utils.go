package bloat

func isHexDigit(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
