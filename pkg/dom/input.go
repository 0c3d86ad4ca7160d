package dom

import "sync"

// EventCancel is dispatched on a file input when the picker is dismissed.
const EventCancel = "cancel"

// Chooser is the platform file-selection affordance. It is handed the
// input's accept string and must eventually call done exactly once, with the
// selected files or with none when the user dismissed the dialog. It may
// call done from another goroutine.
type Chooser func(accept string, done func(files []*File))

// FileInput is an <input type="file"> element. Click opens the chooser;
// the selection is reported as a "change" event carrying Files.
type FileInput struct {
	*Element

	mu      sync.Mutex
	chooser Chooser
}

// NewFileInput creates a file input that uses chooser as its picker. A nil
// chooser makes Click a no-op.
func NewFileInput(chooser Chooser) *FileInput {
	in := &FileInput{Element: NewElement("input"), chooser: chooser}
	in.SetAttribute("type", "file")
	return in
}

// SetChooser replaces the picker.
func (in *FileInput) SetChooser(c Chooser) {
	in.mu.Lock()
	in.chooser = c
	in.mu.Unlock()
}

// Click opens the picker.
func (in *FileInput) Click() {
	in.mu.Lock()
	chooser := in.chooser
	in.mu.Unlock()
	if chooser == nil {
		return
	}

	var once sync.Once
	chooser(in.GetAttribute("accept"), func(files []*File) {
		once.Do(func() {
			if len(files) == 0 {
				in.Dispatch(NewEvent(EventCancel))
				return
			}
			in.Dispatch(&Event{Type: EventChange, Files: files})
		})
	})
}

// StaticChooser returns a Chooser that immediately selects files. With no
// files it behaves like a dismissed dialog.
func StaticChooser(files ...*File) Chooser {
	return func(_ string, done func([]*File)) {
		done(files)
	}
}
