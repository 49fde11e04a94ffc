package fsadapter

// WriteReadyFlagFile performs the full ready-flag write protocol for a
// whole-file replacement (spec.md §4.A): write body with a leading 0x00
// flag byte, flush, overwrite the flag byte with 0x01, flush again. body
// must already have its first byte reserved for the flag; this function
// overwrites it regardless of what the caller put there.
func WriteReadyFlagFile(path string, body []byte) error {
	if len(body) == 0 {
		body = []byte{0x00}
	} else {
		body[0] = 0x00
	}

	f, err := CreateReadyFlagFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteAt(body, 0); err != nil {
		return classify("writeReadyFlagFile", path, err)
	}

	if err := f.Sync(); err != nil {
		return classify("writeReadyFlagFile", path, err)
	}

	if _, err := f.WriteAt([]byte{0x01}, 0); err != nil {
		return classify("writeReadyFlagFile", path, err)
	}

	if err := f.Sync(); err != nil {
		return classify("writeReadyFlagFile", path, err)
	}

	return nil
}

// ReadReadyFlagFile reads a whole ready-flag file and returns its body
// (the flag byte plus everything after it). It checks the flag byte
// itself: an empty file or a flag other than 0x01 means the write was
// interrupted, and it returns ErrTruncated instead of the body.
func ReadReadyFlagFile(fs FS, path string) ([]byte, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 || data[0] != 0x01 {
		return nil, &Error{Op: "readReadyFlagFile", Path: path, Err: ErrTruncated}
	}

	return data, nil
}
