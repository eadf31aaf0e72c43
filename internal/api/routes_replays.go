package api

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aof-gg/aofkeeper/internal/aof"
	"github.com/aof-gg/aofkeeper/internal/replay"
	"github.com/aof-gg/aofkeeper/internal/storage"
)

type fragmentKind int

const (
	keyframes fragmentKind = iota
	chunks
)

// fragmentBody is the JSON form of one keyframe or chunk. Data is base64.
type fragmentBody struct {
	ID   uint16 `json:"id"`
	Data []byte `json:"data"`
}

// replayBody is the JSON form accepted by PUT /api/replays/:name.
type replayBody struct {
	replay.Metadata
	Keyframes []fragmentBody `json:"keyframes"`
	Chunks    []fragmentBody `json:"chunks"`
}

func (b *replayBody) toReplay() *replay.Replay {
	collect := func(in []fragmentBody) *replay.Fragments {
		if in == nil {
			return nil
		}
		f := replay.NewFragments()
		for _, fr := range in {
			f.Put(replay.Fragment{ID: fr.ID, Data: fr.Data})
		}
		return f
	}

	return &replay.Replay{
		Metadata: b.Metadata,
		Data: replay.Data{
			Keyframes: collect(b.Keyframes),
			Chunks:    collect(b.Chunks),
		},
	}
}

// handleListReplays returns catalog entries, newest first.
func (s *Server) handleListReplays(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	entries, err := s.archive.List(limit)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"replays": entries,
		"total":   len(entries),
	})
}

// handleGetReplay decodes a stored replay and returns its metadata and
// fragment ids.
func (s *Server) handleGetReplay(c *gin.Context) {
	name := c.Param("name")

	rp, err := s.archive.Load(c.Request.Context(), name)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"name":          name,
		"metadata":      rp.Metadata,
		"keyframe_ids":  rp.Keyframes.IDs(),
		"chunk_ids":     rp.Chunks.IDs(),
		"payload_bytes": rp.Keyframes.PayloadSize() + rp.Chunks.PayloadSize(),
	})
}

// handleGetRaw serves the stored .aof file.
func (s *Server) handleGetRaw(c *gin.Context) {
	name := c.Param("name")

	raw, err := s.archive.LoadRaw(c.Request.Context(), name)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", attachmentHeader(name+storage.Ext))
	c.Data(http.StatusOK, "application/octet-stream", raw)
}

// handleGetFragment serves the payload of one keyframe or chunk.
func (s *Server) handleGetFragment(kind fragmentKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 16)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fragment id"})
			return
		}

		rp, err := s.archive.Load(c.Request.Context(), c.Param("name"))
		if err != nil {
			s.writeError(c, err)
			return
		}

		frags := rp.Keyframes
		if kind == chunks {
			frags = rp.Chunks
		}

		fr, ok := frags.Get(uint16(id))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "fragment not found"})
			return
		}
		c.Data(http.StatusOK, "application/octet-stream", fr.Data)
	}
}

// handleUploadRaw stores an encoded replay sent as the request body.
func (s *Server) handleUploadRaw(c *gin.Context) {
	name := c.Param("name")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes())
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.writeError(c, err)
		return
	}

	meta, err := s.archive.Import(c.Request.Context(), name, raw)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"name":     name,
		"metadata": meta,
	})
}

// handleSaveReplay encodes a replay sent as JSON and stores it.
func (s *Server) handleSaveReplay(c *gin.Context) {
	name := c.Param("name")

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes())
	var body replayBody
	if err := c.ShouldBindJSON(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	warnings, err := s.archive.Save(c.Request.Context(), name, body.toReplay())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"name":     name,
		"warnings": warnings,
	})
}

// handleDeleteReplay removes a replay and its catalog entry.
func (s *Server) handleDeleteReplay(c *gin.Context) {
	name := c.Param("name")

	if err := s.archive.Delete(c.Request.Context(), name); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": name})
}

func (s *Server) maxUploadBytes() int64 {
	mb := s.cfg.MaxUploadMB
	if mb <= 0 {
		mb = 64
	}
	return int64(mb) << 20
}

// writeError maps archive and codec errors to HTTP status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidName):
		status = http.StatusBadRequest
	case errors.As(err, &tooLarge):
		status = http.StatusRequestEntityTooLarge
	case aof.IsValidationError(err), aof.IsFormatError(err):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

// attachmentHeader builds a Content-Disposition value with filename quoted
// or RFC 2231 encoded as needed.
func attachmentHeader(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
