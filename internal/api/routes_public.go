package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aof-gg/aofkeeper/internal/util"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "aofkeeper",
		"version": s.version,
	})
}

// handleStatus reports the archive size and the disk holding it.
func (s *Server) handleStatus(c *gin.Context) {
	count, total, err := s.archive.Stats()
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := gin.H{
		"replays":     count,
		"total_bytes": total,
		"total_human": util.FormatBytes(total),
		"system":      util.GetSystemInfo(),
	}

	if usage, err := util.GetDiskUsage(s.replayDir); err == nil {
		resp["disk"] = usage
	} else {
		s.logger.Warn().Err(err).Msg("disk usage unavailable")
	}

	c.JSON(http.StatusOK, resp)
}
