package api

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/nuuskamummu/sqlite3-partitioner/internal/bucket"
	"github.com/nuuskamummu/sqlite3-partitioner/internal/timeparse"
)

func (s *Server) healthHandler(c *gin.Context) {
	SuccessResponse(c, "ok", gin.H{"tables": s.tableNames})
}

func (s *Server) listTables(c *gin.Context) {
	SuccessResponse(c, "ok", gin.H{"tables": s.tableNames})
}

func (s *Server) tableRoot(c *gin.Context) {
	t, err := s.loadTable(c.Request.Context(), c.Param("name"))
	if err != nil {
		NotFoundError(c, err.Error())
		return
	}
	SuccessResponse(c, "ok", gin.H{
		"name":                  t.name,
		"partition_column_name": t.root.PartitionColumnName,
		"interval_seconds":      t.root.IntervalSeconds,
		"interval":              bucket.FromSeconds(t.root.IntervalSeconds).String(),
		"template_name":         t.root.TemplateName,
		"lookup_name":           t.root.LookupName,
	})
}

func (s *Server) listPartitions(c *gin.Context) {
	t, err := s.loadTable(c.Request.Context(), c.Param("name"))
	if err != nil {
		NotFoundError(c, err.Error())
		return
	}

	partitions := make([]gin.H, 0, len(t.mgr.All()))
	for bucketStart, name := range t.mgr.All() {
		partitions = append(partitions, gin.H{
			"bucket_start": bucketStart,
			"name":         name,
		})
	}
	SuccessResponse(c, "ok", gin.H{"partitions": partitions})
}

func (s *Server) listIndexes(c *gin.Context) {
	t, err := s.loadTable(c.Request.Context(), c.Param("name"))
	if err != nil {
		NotFoundError(c, err.Error())
		return
	}

	defs, err := t.cat.TemplateIndexes(c.Request.Context(), s.db, t.root.TemplateName)
	if err != nil {
		InternalError(c, err.Error())
		return
	}

	indexes := make([]gin.H, 0, len(defs))
	for _, def := range defs {
		indexes = append(indexes, gin.H{
			"name":    def.Name,
			"unique":  def.Unique,
			"columns": def.Columns,
		})
	}
	SuccessResponse(c, "ok", gin.H{"indexes": indexes})
}

type ensurePartitionRequest struct {
	Epoch     *int64 `json:"epoch"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) ensurePartition(c *gin.Context) {
	t, err := s.loadTable(c.Request.Context(), c.Param("name"))
	if err != nil {
		NotFoundError(c, err.Error())
		return
	}

	var req ensurePartitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}

	epoch, err := resolveEpoch(req)
	if err != nil {
		BadRequestError(c, err.Error())
		return
	}

	bucketStart := bucket.Bucketize(epoch, t.mgr.Interval())
	name, err := t.mgr.EnsurePartition(c.Request.Context(), s.db, bucketStart)
	if err != nil {
		InternalError(c, err.Error())
		return
	}

	CreatedResponse(c, "partition ensured", gin.H{
		"bucket_start": bucketStart,
		"name":         name,
	})
}

func resolveEpoch(req ensurePartitionRequest) (int64, error) {
	if req.Epoch != nil {
		return *req.Epoch, nil
	}
	if req.Timestamp != "" {
		return timeparse.Parse(req.Timestamp)
	}
	return 0, errors.New("one of epoch or timestamp is required")
}
