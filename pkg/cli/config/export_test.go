package config

import "time"

type flagsForTest map[string]bool

func (f flagsForTest) IsSet(name string) bool {
	return f[name]
}

// ApplyForTest applies fc as if the named flags had been given explicitly
func ApplyForTest(g Groups, fc *FileConfig, set ...string) error {
	flags := flagsForTest{}
	for _, name := range set {
		flags[name] = true
	}
	return g.Apply(flags, fc)
}

func NewStorageForTest(backend, path, index string) *Storage {
	return &Storage{backend: backend, path: path, index: index}
}

func NewEmbeddingForTest(provider, apiKey, project string, dimension int) *Embedding {
	return &Embedding{
		provider:       provider,
		openaiAPIKey:   apiKey,
		geminiProject:  project,
		geminiLocation: "us-central1",
		dimension:      dimension,
	}
}

func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

func (s *Storage) Values() (backend, path, index string) {
	return s.backend, s.path, s.index
}

func (x *Extractor) Values() (ruby, script, source string, timeout time.Duration, attempts int) {
	return x.rubyPath, x.scriptPath, x.sourcePath, x.timeout, x.maxAttempts
}

func (w *Watcher) Values() (time.Duration, string) {
	return w.cooldown, w.pattern
}

func (s *Server) Values() (string, []string, time.Duration) {
	return s.addr, s.origins, s.pingInterval
}
