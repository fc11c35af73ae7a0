package util

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Extension returns the file suffix for documents written by WriteFile.
func Extension(compress bool) string {
	if compress {
		return ".json.zst"
	}
	return ".json"
}

func Marshal(v any, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	je := json.NewEncoder(&buf)
	je.SetEscapeHTML(false)
	je.SetIndent("", "  ")
	if err := je.Encode(v); err != nil {
		return nil, errors.Wrap(err, "json encode")
	}

	if !compress {
		return buf.Bytes(), nil
	}

	zw, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "new zstd writer")
	}
	defer zw.Close()
	return zw.EncodeAll(buf.Bytes(), make([]byte, 0, buf.Len())), nil
}

func Unmarshal(data []byte, compress bool, v any) error {
	if !compress {
		if err := json.Unmarshal(data, v); err != nil {
			return errors.Wrap(err, "json unmarshal")
		}
		return nil
	}

	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "new zstd reader")
	}
	defer zr.Close()

	if err := json.NewDecoder(zr).Decode(v); err != nil {
		return errors.Wrap(err, "json decode")
	}
	return nil
}

// WriteFile marshals v to path, creating parent directories as needed.
func WriteFile(path string, v any, compress bool) error {
	bs, err := Marshal(v, compress)
	if err != nil {
		return errors.Wrap(err, "marshal")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, bs, 0644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

func ReadFile(path string, v any) error {
	bs, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := Unmarshal(bs, filepath.Ext(path) == ".zst", v); err != nil {
		return errors.Wrapf(err, "unmarshal %s", path)
	}
	return nil
}
