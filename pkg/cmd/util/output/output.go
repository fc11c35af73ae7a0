package output

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// JSON writes v to stdout as indented JSON.
func JSON(v any) error {
	e := json.NewEncoder(os.Stdout)
	e.SetEscapeHTML(false)
	e.SetIndent("", "  ")
	if err := e.Encode(v); err != nil {
		return errors.Wrap(err, "encode json")
	}
	return nil
}
