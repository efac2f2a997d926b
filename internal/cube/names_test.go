package cube

import "testing"

func TestDimTableName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"AreaCode", "dim_areacode"},
		{"Year Code", "dim_year_code"},
		{"Alt-Measure", "dim_alt_measure"},
	}
	for _, tt := range tests {
		if got := DimTableName(tt.in); got != tt.want {
			t.Errorf("DimTableName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCoreViewName(t *testing.T) {
	if got := CoreViewName("en-GB"); got != "core_en_gb" {
		t.Errorf("CoreViewName(en-GB) = %q", got)
	}
	if got := CoreViewName("cy-GB"); got != "core_cy_gb" {
		t.Errorf("CoreViewName(cy-GB) = %q", got)
	}
}

func TestDescriptionColumn(t *testing.T) {
	if got := DescriptionColumn("AreaCode"); got != "AreaCode_desc" {
		t.Errorf("DescriptionColumn = %q", got)
	}
}
