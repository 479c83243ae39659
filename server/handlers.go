package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/xerrors"
)

type nextResponse struct {
	ID    string `json:"id"`
	IDInt int64  `json:"id_int"`
}

type batchResponse struct {
	IDs []string `json:"ids"`
}

type decodeResponse struct {
	idgen.Parts
	Encoding  idgen.Encoding            `json:"encoding"`
	Epoch     int64                     `json:"epoch"`
	Encodings map[idgen.Encoding]string `json:"encodings"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// batcher 生成器可选实现的批量接口
type batcher interface {
	NextIDs(n int) ([]int64, error)
}

func (s *Server) handleNext(c *gin.Context) {
	id, err := s.gen.NextID()
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	c.JSON(http.StatusOK, nextResponse{ID: strconv.FormatInt(id, 10), IDInt: id})
}

func (s *Server) handleBatch(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "1"))
	if err != nil || count < 1 || count > s.cfg.MaxBatch {
		abortWithError(c, s.logger,
			xerrors.Wrapf(xerrors.ErrInvalidInput, "count must be an integer in [1, %d]", s.cfg.MaxBatch))
		return
	}

	ids, err := s.nextIDs(count)
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	c.JSON(http.StatusOK, batchResponse{IDs: out})
}

func (s *Server) nextIDs(n int) ([]int64, error) {
	if b, ok := s.gen.(batcher); ok {
		return b.NextIDs(n)
	}
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id, err := s.gen.NextID()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Server) handleDecode(c *gin.Context) {
	enc, err := idgen.ParseEncoding(c.Query("encoding"))
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}
	id, err := idgen.Parse(c.Param("id"), enc)
	if err != nil {
		abortWithError(c, s.logger, err)
		return
	}

	encodings := make(map[idgen.Encoding]string, len(idgen.Encodings()))
	for _, e := range idgen.Encodings() {
		v, err := idgen.Format(id, e)
		if err != nil {
			abortWithError(c, s.logger, err)
			return
		}
		encodings[e] = v
	}

	c.JSON(http.StatusOK, decodeResponse{
		Parts:     idgen.Decompose(id, s.epoch),
		Encoding:  enc,
		Epoch:     s.epoch,
		Encodings: encodings,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok"}
	status := http.StatusOK

	if h, ok := s.gen.(interface{ Healthy() bool }); ok && !h.Healthy() {
		resp.Status, status = "unavailable", http.StatusServiceUnavailable
		resp.Checks = map[string]string{"idgen": "lease lost or node closed"}
	}
	for name, check := range s.checks {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string)
		}
		if err := check(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status, status = "unavailable", http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	c.JSON(status, resp)
}
