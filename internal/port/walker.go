package port

import "hybridrag/internal/domain"

// FileWalker lists corpus files under a root directory.
type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// DocumentReader decodes the documents stored in one corpus file, in file order.
type DocumentReader interface {
	ReadDocuments(path string) ([]domain.Document, error)
}
