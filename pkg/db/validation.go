package db

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/glorpus-work/alpmdb/pkg/errors"
	"github.com/glorpus-work/alpmdb/pkg/mtree"
)

// FileType is the coarse type of a file, as recorded or as found on disk.
type FileType int

const (
	FileTypeFile FileType = iota
	FileTypeDirectory
	FileTypeSymbolicLink
	FileTypeOther
)

func (t FileType) String() string {
	switch t {
	case FileTypeFile:
		return "file"
	case FileTypeDirectory:
		return "directory"
	case FileTypeSymbolicLink:
		return "symbolic link"
	default:
		return "other"
	}
}

func fileTypeOf(t mtree.Type) FileType {
	switch t {
	case mtree.TypeFile:
		return FileTypeFile
	case mtree.TypeDir:
		return FileTypeDirectory
	case mtree.TypeLink:
		return FileTypeSymbolicLink
	default:
		return FileTypeOther
	}
}

func fileTypeOfMode(m fs.FileMode) FileType {
	switch {
	case m&fs.ModeSymlink != 0:
		return FileTypeSymbolicLink
	case m.IsRegular():
		return FileTypeFile
	case m.IsDir():
		return FileTypeDirectory
	default:
		return FileTypeOther
	}
}

// FileRecord is an installed file as described by the package's mtree manifest.
type FileRecord struct {
	// Path is relative to the root, without the manifest's leading "./".
	Path string
	// HasType is false when the manifest did not record a type.
	HasType bool
	Type    FileType
	HasSize bool
	Size    uint64
	HasMode bool
	Mode    fs.FileMode
	Link    string
	SHA256  string
}

func fileRecordOf(path string, e mtree.Entry) FileRecord {
	return FileRecord{
		Path:    path,
		HasType: e.Type != mtree.TypeNone,
		Type:    fileTypeOf(e.Type),
		HasSize: e.HasSize,
		Size:    e.Size,
		HasMode: e.HasMode,
		Mode:    fs.FileMode(e.Mode).Perm(),
		Link:    e.Link,
		SHA256:  e.SHA256,
	}
}

// ValidationKind tells what is wrong with an installed file.
type ValidationKind int

const (
	FileNotFound ValidationKind = iota
	WrongType
	WrongSize
)

func (k ValidationKind) String() string {
	switch k {
	case FileNotFound:
		return "file not found"
	case WrongType:
		return "wrong type"
	case WrongSize:
		return "wrong size"
	default:
		return fmt.Sprintf("validation kind %d", int(k))
	}
}

// ValidationError is one discrepancy between a package's records and the disk. For
// FileNotFound, Path is the full path that was checked; otherwise it is the recorded path.
type ValidationError struct {
	Kind         ValidationKind
	Path         string
	ExpectedType FileType
	ActualType   FileType
	ExpectedSize uint64
	ActualSize   uint64
}

func (e ValidationError) Error() string {
	switch e.Kind {
	case FileNotFound:
		return fmt.Sprintf("file missing at %q", e.Path)
	case WrongType:
		return fmt.Sprintf("database says file %q should be a %s, found a %s", e.Path, e.ExpectedType, e.ActualType)
	case WrongSize:
		return fmt.Sprintf("database says file %q should be %d bytes, found %d", e.Path, e.ExpectedSize, e.ActualSize)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	}
}

// validateFiles checks every record against the tree under root. Problems are collected;
// only I/O errors other than a missing file stop the walk.
func validateFiles(root string, files []FileRecord) ([]ValidationError, error) {
	var problems []ValidationError
	for _, file := range files {
		path := filepath.Join(root, filepath.FromSlash(file.Path))
		info, err := os.Lstat(path)
		if err != nil {
			if os.IsNotExist(err) {
				problems = append(problems, ValidationError{Kind: FileNotFound, Path: path})
				continue
			}
			return nil, errors.From(errors.KindUnexpectedIO, path, err)
		}

		if file.HasType && file.Type != FileTypeOther {
			if actual := fileTypeOfMode(info.Mode()); actual != file.Type {
				problems = append(problems, ValidationError{
					Kind:         WrongType,
					Path:         file.Path,
					ExpectedType: file.Type,
					ActualType:   actual,
				})
			}
		}

		if file.HasSize && uint64(info.Size()) != file.Size {
			problems = append(problems, ValidationError{
				Kind:         WrongSize,
				Path:         file.Path,
				ExpectedSize: file.Size,
				ActualSize:   uint64(info.Size()),
			})
		}
	}
	return problems, nil
}

// sizeOnDisk sums the sizes of the records present under root.
func sizeOnDisk(root string, files []FileRecord) (uint64, error) {
	var total uint64
	for _, file := range files {
		path := filepath.Join(root, filepath.FromSlash(file.Path))
		info, err := os.Lstat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, errors.From(errors.KindUnexpectedIO, path, err)
		}
		total += uint64(info.Size())
	}
	return total, nil
}
