package service

import (
	"testing"
	"time"

	"github.com/devjogerio/web-scraping-facebook/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func orgRecord(dt model.DataType, content string, at time.Time) *model.FacebookDataModel {
	rec := &model.FacebookDataModel{
		ID:          content,
		TaskID:      "task-1",
		DataType:    dt,
		Content:     content,
		SourceURL:   "https://www.facebook.com/page",
		ExtractedAt: at,
	}
	_ = rec.SetMetadata(model.RecordMetadata{Author: "author-" + content, LikesCount: 3})
	return rec
}

func TestOrganizeRecordsEmpty(t *testing.T) {
	dataset := OrganizeRecords(nil)
	assert.Zero(t, dataset.Total)
	assert.Empty(t, dataset.Types)
	assert.Empty(t, dataset.Summary)
}

func TestOrganizeRecordsGroupsByFirstSeenType(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []*model.FacebookDataModel{
		orgRecord(model.DataTypeComment, "c1", base),
		orgRecord(model.DataTypePost, "p1", base.Add(time.Minute)),
		orgRecord(model.DataTypeComment, "c2", base.Add(2*time.Minute)),
		orgRecord(model.DataTypePost, "p2", base.Add(3*time.Minute)),
		orgRecord(model.DataTypePost, "p3", base.Add(4*time.Minute)),
	}

	dataset := OrganizeRecords(records)

	assert.Equal(t, 5, dataset.Total)
	// 类型顺序按首次出现
	assert.Equal(t, []model.DataType{model.DataTypeComment, model.DataTypePost}, dataset.Types)
	assert.Len(t, dataset.Records[model.DataTypeComment], 2)
	assert.Len(t, dataset.Records[model.DataTypePost], 3)

	// 组内保持输入顺序
	posts := dataset.Records[model.DataTypePost]
	assert.Equal(t, "p1", posts[0].Content)
	assert.Equal(t, "p3", posts[2].Content)

	// 记录自身的 ID 和类型也进入导出行
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, "post", posts[0].DataType)

	// 元数据展开到记录行
	assert.Equal(t, "author-p1", posts[0].Author)
	assert.Equal(t, 3, posts[0].LikesCount)
}

func TestOrganizeRecordsSummary(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []*model.FacebookDataModel{
		orgRecord(model.DataTypePost, "p1", base),
		orgRecord(model.DataTypePost, "p2", base.Add(time.Hour)),
		orgRecord(model.DataTypeProfile, "pr1", base.Add(2*time.Hour)),
	}

	dataset := OrganizeRecords(records)

	require.Len(t, dataset.Summary, 2)
	post := dataset.Summary[0]
	assert.Equal(t, string(model.DataTypePost), post.Type)
	assert.Equal(t, 2, post.Count)
	require.NotNil(t, post.First)
	require.NotNil(t, post.Last)
	assert.Equal(t, base, *post.First)
	assert.Equal(t, base.Add(time.Hour), *post.Last)

	profile := dataset.Summary[1]
	assert.Equal(t, 1, profile.Count)
	assert.Equal(t, *profile.First, *profile.Last)
}

func TestOrganizeRecordsBadMetadata(t *testing.T) {
	rec := &model.FacebookDataModel{
		ID:          "x",
		TaskID:      "task-1",
		DataType:    model.DataTypePost,
		Content:     "broken meta",
		Metadata:    datatypes.JSON("{not json"),
		ExtractedAt: time.Now(),
	}

	dataset := OrganizeRecords([]*model.FacebookDataModel{rec})
	require.Equal(t, 1, dataset.Total)
	assert.Empty(t, dataset.Records[model.DataTypePost][0].Author)
}
