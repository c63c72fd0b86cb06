package extractor

var (
	ParseRubyVersion = parseRubyVersion
	CompareVersion   = compareVersion
	ReadOutput       = readOutput
)
