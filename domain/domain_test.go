package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhesis-ai/rhesis-backend/sietch"
)

var (
	_ Entity = (*Test)(nil)
	_ Entity = (*TestSet)(nil)
	_ Entity = (*TestRun)(nil)
	_ Entity = (*TestResult)(nil)
	_ Entity = (*Model)(nil)
)

func TestBase_SoftDelete(t *testing.T) {
	test := Test{Base: Base{ID: "t1"}}
	assert.False(t, test.IsDeleted())

	sietch.MarkDeleted(&test, time.Now())
	assert.True(t, test.IsDeleted())
	assert.NotNil(t, test.GetDeletedAt())

	sietch.MarkRestored(&test)
	assert.False(t, test.IsDeleted())
	assert.Nil(t, test.DeletedAt)
}

func TestRender(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	model := Model{Base: Base{ID: "m1", OrganizationID: "org", DeletedAt: &at}, Name: "gpt", APIKey: "sk-secret"}

	out, err := Render(&model)
	require.NoError(t, err)
	assert.Equal(t, true, out["is_deleted"])
	assert.Equal(t, "2024-05-01T12:00:00Z", out["deleted_at"])
	assert.Equal(t, "********", out["api_key"])

	out, err = Render(&TestSet{Base: Base{ID: "s1"}})
	require.NoError(t, err)
	assert.Equal(t, false, out["is_deleted"])
	assert.Nil(t, out["deleted_at"])
}

func TestID(t *testing.T) {
	assert.Equal(t, "r1", ID(&TestRun{Base: Base{ID: "r1"}}))
}

func TestTableDefs(t *testing.T) {
	def, err := sietch.InferTableDef[TestResult](TableTestResult)
	require.NoError(t, err)

	assert.Equal(t, "id", def.Columns[0].Name)
	assert.True(t, def.Columns[0].PrimaryKey)
	assert.True(t, def.HasColumn(sietch.DeletedAtField))
	assert.True(t, def.HasColumn("test_run_id"))

	var indexed []string
	for _, idx := range def.Indexes {
		indexed = append(indexed, idx.Columns...)
	}
	assert.ElementsMatch(t, []string{sietch.DeletedAtField, "test_run_id"}, indexed)

	model, err := sietch.InferTableDef[Model](TableModel)
	require.NoError(t, err)
	for _, c := range model.Columns {
		if c.Name == "api_key" {
			assert.Equal(t, sietch.ColumnTypeText, c.Type)
		}
	}
}
