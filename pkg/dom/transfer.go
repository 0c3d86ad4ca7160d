package dom

// Kinds of DataTransferItem.
const (
	KindFile   = "file"
	KindString = "string"
)

// DataTransfer is the payload of a drag-and-drop gesture.
type DataTransfer struct {
	Items []*DataTransferItem
}

// FileTransfer creates a DataTransfer holding the given files, in order.
func FileTransfer(files ...*File) *DataTransfer {
	dt := &DataTransfer{}
	for _, f := range files {
		dt.Items = append(dt.Items, FileItem(f))
	}
	return dt
}

// First returns the first item, or nil when the transfer is empty.
func (dt *DataTransfer) First() *DataTransferItem {
	if dt == nil || len(dt.Items) == 0 {
		return nil
	}
	return dt.Items[0]
}

// DataTransferItem is one dragged item. While the pointer is still hovering
// only Kind and Type are known; the file itself is available on drop.
type DataTransferItem struct {
	// Kind is KindFile or KindString.
	Kind string

	// Type is the declared MIME type of the item.
	Type string

	file *File
}

// FileItem wraps a file as a transfer item.
func FileItem(f *File) *DataTransferItem {
	return &DataTransferItem{Kind: KindFile, Type: f.Type, file: f}
}

// StringItem creates a non-file item such as dragged text or a link.
func StringItem(mimeType string) *DataTransferItem {
	return &DataTransferItem{Kind: KindString, Type: mimeType}
}

// AsFile returns the item's file, or nil when the item is not a file.
func (it *DataTransferItem) AsFile() *File {
	if it == nil || it.Kind != KindFile {
		return nil
	}
	return it.file
}
