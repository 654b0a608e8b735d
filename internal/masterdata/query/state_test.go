package query_test

import (
	"encoding/json"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
)

var departmentDefaults = query.Defaults{
	PerPage: 10,
	Sort:    []query.SortSpec{{ID: "created_at", Desc: true}},
	Columns: []string{"name", "alias", "sys_code", "major", "status", "created_at"},
}

func TestParseDefaults(t *testing.T) {
	st := query.Parse(url.Values{}, departmentDefaults)

	assert.Equal(t, 1, st.Page)
	assert.Equal(t, 10, st.PerPage)
	assert.Equal(t, query.StatusAll, st.Status)
	assert.Equal(t, query.JoinAnd, st.JoinOperator)
	assert.Equal(t, departmentDefaults.Sort, st.Sort)
	assert.Empty(t, st.Encode(departmentDefaults))
}

func TestParseIsTolerant(t *testing.T) {
	values := url.Values{
		"page":         {"-3"},
		"perPage":      {"abc"},
		"status":       {"archived"},
		"sort":         {"{not json"},
		"filters":      {`[{"id":"unknown","value":"x","variant":"text","operator":"iLike"},{"id":"name","value":"hr","variant":"text","operator":"iLike"}]`},
		"joinOperator": {"xor"},
	}

	st := query.Parse(values, departmentDefaults)
	assert.Equal(t, 1, st.Page)
	assert.Equal(t, 10, st.PerPage)
	assert.Equal(t, query.StatusAll, st.Status)
	assert.Equal(t, departmentDefaults.Sort, st.Sort)
	assert.Equal(t, query.JoinAnd, st.JoinOperator)
	require.Len(t, st.Filters, 1)
	assert.Equal(t, "name", st.Filters[0].ID)
}

func TestEncodeParseRoundTrip(t *testing.T) {
	st := query.State{
		Page:    3,
		PerPage: 25,
		Search:  "teknik",
		Status:  query.StatusActive,
		Sort:    []query.SortSpec{{ID: "name"}, {ID: "created_at", Desc: true}},
		Filters: []query.FilterSpec{
			{ID: "sys_code", Value: query.Single("FT"), Variant: query.VariantText, Operator: "iLike", FilterID: "f1"},
			{ID: "status", Value: query.List("active", "inactive"), Variant: query.VariantMultiSelect, Operator: "inArray", FilterID: "f2"},
		},
		JoinOperator: query.JoinOr,
	}

	values := st.Encode(departmentDefaults)
	again := query.Parse(values, departmentDefaults)
	assert.Equal(t, st.Key(), again.Key())
	assert.Equal(t, values, again.Encode(departmentDefaults))
}

func TestKeyDistinguishesStates(t *testing.T) {
	base := departmentDefaults.Initial()
	next := base.Clone()
	next.Page = 2

	assert.NotEqual(t, base.Key(), next.Key())
	assert.Equal(t, base.Key(), base.Clone().Key())
}

func TestClamp(t *testing.T) {
	st := query.State{Page: 5}
	assert.Equal(t, 2, st.Clamp(2).Page)
	assert.Equal(t, 1, st.Clamp(0).Page)
	assert.Equal(t, 1, query.State{Page: 0}.Clamp(4).Page)
	assert.Equal(t, 3, query.State{Page: 3}.Clamp(4).Page)
}

func TestFilterValueKeepsShape(t *testing.T) {
	var specs []query.FilterSpec
	require.NoError(t, json.Unmarshal([]byte(`[{"id":"a","value":"x"},{"id":"b","value":["1",""]}]`), &specs))

	assert.Equal(t, []string{"x"}, specs[0].Value.Targets())
	assert.Equal(t, []string{"1"}, specs[1].Value.Targets())
	assert.Equal(t, []string{"1", ""}, specs[1].Value.Raw())

	out, err := json.Marshal(specs)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a","value":"x","variant":"","operator":""},{"id":"b","value":["1",""],"variant":"","operator":""}]`, string(out))
}

func TestDebouncerCommitsLatestValue(t *testing.T) {
	var mu sync.Mutex
	var committed []string
	d := query.NewDebouncer(20*time.Millisecond, func(v string) {
		mu.Lock()
		defer mu.Unlock()
		committed = append(committed, v)
	})

	d.Push("t")
	d.Push("te")
	d.Push("tek")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(committed) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"tek"}, committed)
}

func TestDebouncerStopDiscards(t *testing.T) {
	called := make(chan string, 1)
	d := query.NewDebouncer(10*time.Millisecond, func(v string) { called <- v })

	d.Push("abc")
	d.Stop()

	select {
	case v := <-called:
		t.Fatalf("unexpected commit %q", v)
	case <-time.After(50 * time.Millisecond):
	}
}
