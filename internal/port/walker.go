package port

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	RelPath string
	ModTime int64
	Size    int64
}

// SourceReader reads and decodes one source file.
type SourceReader interface {
	ReadSource(path string) (string, error)
}
