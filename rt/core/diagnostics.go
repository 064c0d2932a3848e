package core

import "fmt"

// Diagnostics records a non-fatal resource failure on the material, texture
// or geometry it is attached to.
type Diagnostics struct {
	Stage string
	Log   string
	Err   error
}

func (d *Diagnostics) Error() string {
	if d == nil {
		return ""
	}
	if d.Log != "" {
		return fmt.Sprintf("%s: %v\n%s", d.Stage, d.Err, d.Log)
	}
	return fmt.Sprintf("%s: %v", d.Stage, d.Err)
}

func (d *Diagnostics) Unwrap() error {
	if d == nil {
		return nil
	}
	return d.Err
}
