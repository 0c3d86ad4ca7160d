// Package upload is the receiving side of the upload area.
//
// The widget sends each accepted file as a single HTTP PUT:
//
//	PUT / HTTP/1.1
//	Content-Type: image/png
//	File-Name: holiday.png
//
//	<file bytes>
//
// Handler stores the body through a Store and answers 200 with the stored
// path as plain text. Any other status carries the error text as the body,
// which the widget reports verbatim in its fileuploaderror event.
//
// FormHandler accepts the same file as a multipart/form-data POST, which is
// what the enclosing form sends when no widget intercepts it.
//
// # Storage
//
// Two stores are provided. DiskStore writes <dir>/<sha256><ext> with a JSON
// sidecar for the original name and type. S3Store writes the same key
// layout to a bucket. Both are content addressed, so re-uploading
// identical bytes returns the same path.
//
// # Usage
//
//	store, err := upload.NewDiskStore("./uploads", 0)
//	if err != nil {
//	    return err
//	}
//	r.Put("/", upload.Handler(store))
//	r.Post("/", upload.FormHandler(store))
//	r.Get("/uploads/*", upload.FileServer(store, nil))
//
// # Security
//
// Config.Accepts applies the widget's accept-list on the server too, against
// the declared File-Name and Content-Type. Neither header is verified
// against the contents. Config.MaxFileSize bounds the body before it is
// read, and stored names never contain client-supplied path elements.
package upload
