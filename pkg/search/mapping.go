package search

import (
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

const taskDocType = "task"

// BuildTaskMapping 任务文档映射：prompt 全文检索，其余字段按关键词精确过滤
func BuildTaskMapping() *mapping.IndexMappingImpl {
	idx := mapping.NewIndexMapping()
	idx.DefaultAnalyzer = standard.Name
	idx.TypeField = "type"

	// 文本
	text := mapping.NewTextFieldMapping()
	text.Store = true
	text.Index = true
	text.Analyzer = standard.Name
	text.IncludeTermVectors = true

	// 关键词
	kw := mapping.NewTextFieldMapping()
	kw.Store = true
	kw.Index = true
	kw.Analyzer = keyword.Name

	dt := mapping.NewDateTimeFieldMapping()
	dt.Store = true
	dt.Index = true

	task := mapping.NewDocumentMapping()
	task.Dynamic = false
	task.AddFieldMappingsAt("prompt", text)
	task.AddFieldMappingsAt("user_id", kw)
	task.AddFieldMappingsAt("voice_id", kw)
	task.AddFieldMappingsAt("status", kw)
	task.AddFieldMappingsAt("created_at", dt)
	idx.AddDocumentMapping(taskDocType, task)

	def := mapping.NewDocumentMapping()
	def.Dynamic = false
	idx.DefaultMapping = def
	return idx
}
