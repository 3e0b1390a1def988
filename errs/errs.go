// Package errs appends the url/ref/start-path context spec.md §7 requires
// onto fatal configuration and descriptor-parse errors, in the teacher's
// fmt.Errorf("... err:%w", ...) wrapping style rather than a structured
// error type.
package errs

import "fmt"

// WithContext wraps err with a "key:value  " prefix for each non-empty pair
// in kv (key, value, key, value, ...), preserving err for errors.Is/As.
func WithContext(err error, kv ...string) error {
	if err == nil {
		return nil
	}
	prefix := ""
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		prefix += fmt.Sprintf("%s:%s  ", kv[i], kv[i+1])
	}
	if prefix == "" {
		return err
	}
	return fmt.Errorf("%serr:%w", prefix, err)
}
