// Package aeon reads, repairs, and writes Aeon Timeline 2 project
// archives: zip containers holding a single timeline.json document.
//
// The codec deliberately models only what reconciliation requires. The
// document is kept as a generic jdoc tree, so every field the engine does
// not understand survives a read-modify-write cycle untouched, and the
// canonical serialization keeps repeated writes byte-identical.
package aeon

import (
	"archive/zip"
	"bytes"
	"io"
	"os"

	"github.com/nholm/tlsync/internal/jdoc"
)

// entryName is the single significant entry inside the archive.
const entryName = "timeline.json"

// BackupSuffix is appended to the archive path when an existing file is
// set aside before an overwrite.
const BackupSuffix = ".bak"

// Document is a parsed timeline archive. Root is the raw JSON tree; the
// accessor methods in document.go navigate the parts the engine cares
// about.
type Document struct {
	Root jdoc.Object
}

// Open reads the archive at path and parses its timeline document.
// It fails with a ContainerError when the container cannot be opened, the
// timeline entry is missing or empty, or the entry is not well-formed
// JSON.
func Open(path string) (*Document, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, &ContainerError{Op: "open", Path: path, Msg: "cannot read timeline data", Err: err}
	}
	defer zr.Close()

	var data []byte
	for _, f := range zr.File {
		if f.Name != entryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, &ContainerError{Op: "open", Path: path, Msg: "cannot read timeline data", Err: err}
		}
		data, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, &ContainerError{Op: "open", Path: path, Msg: "cannot read timeline data", Err: err}
		}
		break
	}
	if data == nil {
		return nil, &ContainerError{Op: "open", Path: path, Msg: "no timeline.json entry in archive"}
	}
	if len(data) == 0 {
		return nil, &ContainerError{Op: "open", Path: path, Msg: "no JSON part found in timeline data"}
	}

	root, err := jdoc.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ContainerError{Op: "open", Path: path, Msg: "invalid JSON data in timeline", Err: err}
	}
	return &Document{Root: root}, nil
}

// Save writes the document to path. If a file already exists there it is
// renamed to a .bak sibling first; on a failed write the original is
// restored from that backup, and on success the backup is left in place.
// This rename-then-write-then-restore protocol is the codec's sole
// durability guarantee.
func Save(doc *Document, path string) error {
	data, err := jdoc.MarshalCanonical(doc.Root)
	if err != nil {
		return &ContainerError{Op: "save", Path: path, Msg: "cannot encode timeline data", Err: err}
	}

	backedUp := false
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+BackupSuffix); err != nil {
			return &ContainerError{Op: "save", Path: path, Msg: "cannot overwrite file", Err: err}
		}
		backedUp = true
	}

	if err := writeArchive(path, data); err != nil {
		if backedUp {
			// Best effort: put the original back.
			_ = os.Rename(path+BackupSuffix, path)
		}
		return &ContainerError{Op: "save", Path: path, Msg: "cannot write file", Err: err}
	}
	return nil
}

func writeArchive(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)
	w, err := zw.Create(entryName)
	if err == nil {
		_, err = w.Write(data)
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
	}
	return err
}
