package service

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
)

// fakeUploadServer emulates the media upload endpoints of the Drive and
// Cloud Storage JSON APIs: multipart uploads and the resumable protocol.
type fakeUploadServer struct {
	*httptest.Server

	mu sync.Mutex
	// rejectChunk is the 1-based chunk number answered with rejectStatus. Zero accepts all.
	rejectChunk  int
	rejectStatus int
	// rejectCreate answers the initial request with this status when non-zero.
	rejectCreate int

	chunks      int
	nextID      int
	generations int
	sessions    map[string]*fakeSession
	files       map[string]*fakeFile
}

type fakeSession struct {
	metadata map[string]any
	data     []byte
}

type fakeFile struct {
	Generation int
	Metadata   map[string]any
	Data       []byte
}

func newFakeUploadServer(t *testing.T) *fakeUploadServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fakeUploadServer{
		sessions: make(map[string]*fakeSession),
		files:    make(map[string]*fakeFile),
	}

	r := gin.New()
	for _, p := range []string{"/upload/drive/v3/files", "/drive/v3/files"} {
		r.POST(p, f.handleCreate(f.driveResponse))
	}
	for _, p := range []string{"/upload/storage/v1/b/:bucket/o", "/storage/v1/b/:bucket/o"} {
		r.POST(p, f.handleCreate(f.storageResponse))
	}
	r.Any("/sessions/:id", f.handleChunk)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Close)
	return f
}

type responder func(c *gin.Context, id string, file *fakeFile)

func (f *fakeUploadServer) driveResponse(c *gin.Context, id string, _ *fakeFile) {
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (f *fakeUploadServer) storageResponse(c *gin.Context, id string, file *fakeFile) {
	name, _ := file.Metadata["name"].(string)
	bucket := c.Param("bucket")
	c.JSON(http.StatusOK, gin.H{
		"kind":        "storage#object",
		"id":          fmt.Sprintf("%s/%s/%s", bucket, name, id),
		"name":        name,
		"bucket":      bucket,
		"generation":  strconv.Itoa(file.Generation),
		"size":        strconv.Itoa(len(file.Data)),
		"contentType": file.Metadata["contentType"],
	})
}

func apiError(c *gin.Context, status int) {
	c.JSON(status, gin.H{"error": gin.H{
		"code":    status,
		"message": http.StatusText(status),
		"errors":  []gin.H{{"reason": "fake", "message": http.StatusText(status)}},
	}})
}

func (f *fakeUploadServer) handleCreate(respond responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.rejectCreate != 0 {
			apiError(c, f.rejectCreate)
			return
		}

		switch c.Query("uploadType") {
		case "multipart":
			metadata, data, err := readMultipart(c.Request)
			if err != nil {
				apiError(c, http.StatusBadRequest)
				return
			}
			f.chunks++
			if f.chunks == f.rejectChunk {
				apiError(c, f.rejectStatus)
				return
			}
			id, file := f.store(metadata, data)
			respond(c, id, file)

		case "resumable":
			var metadata map[string]any
			if err := json.NewDecoder(c.Request.Body).Decode(&metadata); err != nil {
				apiError(c, http.StatusBadRequest)
				return
			}
			f.nextID++
			sid := strconv.Itoa(f.nextID)
			f.sessions[sid] = &fakeSession{metadata: metadata}
			c.Header("Location", f.URL+"/sessions/"+sid+"?respond="+responderName(c))
			c.Status(http.StatusOK)

		default:
			apiError(c, http.StatusBadRequest)
		}
	}
}

func responderName(c *gin.Context) string {
	if strings.Contains(c.Request.URL.Path, "/storage/") {
		return "storage"
	}
	return "drive"
}

func (f *fakeUploadServer) handleChunk(c *gin.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sess, ok := f.sessions[c.Param("id")]
	if !ok {
		apiError(c, http.StatusNotFound)
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apiError(c, http.StatusBadRequest)
		return
	}

	f.chunks++
	if f.chunks == f.rejectChunk {
		delete(f.sessions, c.Param("id"))
		apiError(c, f.rejectStatus)
		return
	}
	sess.data = append(sess.data, body...)

	// "bytes 0-99/*" for intermediate chunks, "bytes 0-99/100" or "bytes */100" for the last one.
	cr := c.GetHeader("Content-Range")
	total := cr[strings.LastIndex(cr, "/")+1:]
	if total == "*" {
		c.Header("X-Http-Status-Code-Override", "308")
		c.Header("Range", fmt.Sprintf("bytes=0-%d", len(sess.data)-1))
		c.Status(http.StatusOK)
		return
	}
	if n, err := strconv.Atoi(total); err != nil || n != len(sess.data) {
		apiError(c, http.StatusBadRequest)
		return
	}

	delete(f.sessions, c.Param("id"))
	id, file := f.store(sess.metadata, sess.data)
	if c.Query("respond") == "storage" {
		f.storageResponse(c, id, file)
		return
	}
	f.driveResponse(c, id, file)
}

func (f *fakeUploadServer) store(metadata map[string]any, data []byte) (string, *fakeFile) {
	f.nextID++
	id := "file-" + strconv.Itoa(f.nextID)
	f.generations++
	file := &fakeFile{Generation: f.generations, Metadata: metadata, Data: data}
	f.files[id] = file
	return id, file
}

func (f *fakeUploadServer) file(id string) *fakeFile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[id]
}

func (f *fakeUploadServer) fileCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

func (f *fakeUploadServer) chunkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chunks
}

func readMultipart(r *http.Request) (map[string]any, []byte, error) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, err
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	part, err := mr.NextPart()
	if err != nil {
		return nil, nil, err
	}
	var metadata map[string]any
	if err := json.NewDecoder(part).Decode(&metadata); err != nil {
		return nil, nil, err
	}

	part, err = mr.NextPart()
	if err != nil {
		return nil, nil, err
	}
	data, err := io.ReadAll(part)
	if err != nil {
		return nil, nil, err
	}
	return metadata, data, nil
}
