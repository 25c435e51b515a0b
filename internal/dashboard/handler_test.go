package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/worksla/worksla-web/internal/workpackages"
)

func TestBuildViewModelSortsCounts(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	vm := BuildViewModel(workpackages.Dashboard{
		Stats: workpackages.Stats{
			Total:      10,
			ByStatus:   map[string]int{"New": 2, "ปิดงาน": 5, "กำลังดำเนินการ": 2, "ดำเนินการเสร็จ": 1},
			ByPriority: map[string]int{"High": 3},
		},
	}, now)

	assert.Equal(t, []Count{
		{"ปิดงาน", 5},
		{"New", 2},
		{"กำลังดำเนินการ", 2},
		{"ดำเนินการเสร็จ", 1},
	}, vm.ByStatus)
	assert.Equal(t, []Count{{"High", 3}}, vm.ByPriority)
	assert.Equal(t, now, vm.GeneratedAt)
}

func TestBuildViewModelEmpty(t *testing.T) {
	vm := BuildViewModel(workpackages.Dashboard{}, time.Now())
	assert.Empty(t, vm.ByStatus)
	assert.NotNil(t, vm.ByStatus)
}
