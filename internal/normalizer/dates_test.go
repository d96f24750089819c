package normalizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"空字符串", "", ""},
		{"只有空白", "   \t ", ""},
		{"present", "Present", Present},
		{"current 小写", "current", Present},
		{"now 带空白", "  Now ", Present},
		{"today", "TODAY", Present},
		{"ongoing", "ongoing", Present},
		{"完整月份", "December 2022", "01/12/2022"},
		{"缩写月份", "Jan 2020", "01/01/2020"},
		{"缩写带点", "Sept. 2019", "01/09/2019"},
		{"只有年份", "2020", "01/01/2020"},
		{"年-月", "2020-01", "01/01/2020"},
		{"月/年", "01/2020", "01/01/2020"},
		{"ISO", "2020-01-15", "15/01/2020"},
		{"日在前", "3/2/2020", "03/02/2020"},
		{"已规范", "15/01/2020", "15/01/2020"},
		{"日大于12时交换", "01/15/2020", "15/01/2020"},
		{"日 月名 年", "5 March 2021", "05/03/2021"},
		{"月名 日, 年", "March 5th, 2021", "05/03/2021"},
		{"两位年份", "03/02/21", "03/02/2021"},
		{"句中月份年份", "worked there since March 2019", "01/03/2019"},
		{"首尾标点", "(2018)", "01/01/2018"},
		{"无法解析原样返回", "  hello world ", "hello world"},
		{"缩写词原样返回", "N/A", "N/A"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeDate(tc.in), "输入: %q", tc.in)
		})
	}
}

func TestNormalizeDateIsIdempotent(t *testing.T) {
	inputs := []string{
		"December 2022", "2020", "3/2/2020", "15/01/2020", "Present", "hello",
		"2020-01-15", "Jan 2020", "", "  ", "32/13/2020", "Q3 FY24",
	}
	for _, in := range inputs {
		once := NormalizeDate(in)
		assert.Equal(t, once, NormalizeDate(once), "二次规范化结果应不变: %q", in)
	}
}

func TestNormalizeDateAdversarial(t *testing.T) {
	inputs := []string{
		strings.Repeat("9", 5000),
		strings.Repeat("Jan ", 2000),
		"\x00\x01\x02",
		"\xff\xfe",
		"--//--",
		"99/99/9999",
		"0/0/0",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { NormalizeDate(in) }, "输入不应导致 panic")
	}
}

func TestIsPartialDate(t *testing.T) {
	assert.True(t, IsPartialDate("January 2020"))
	assert.True(t, IsPartialDate("Jan 2020"))
	assert.True(t, IsPartialDate("2020"))
	assert.True(t, IsPartialDate("2020-01"))
	assert.True(t, IsPartialDate("01/2020"))
	assert.False(t, IsPartialDate("15/01/2020"))
	assert.False(t, IsPartialDate("2020-01-15"))
}

func TestExtractDateRange(t *testing.T) {
	cases := []struct {
		name      string
		in        string
		wantStart string
		wantEnd   string
	}{
		{"月份到至今", "Jan 2020 - Present", "01/01/2020", Present},
		{"en dash", "March 2018 – December 2019", "01/03/2018", "01/12/2019"},
		{"em dash 无空格", "2016—2018", "01/01/2016", "01/01/2018"},
		{"to 分隔", "2015 to 2017", "01/01/2015", "01/01/2017"},
		{"until 分隔", "June 2010 until July 2012", "01/06/2010", "01/07/2012"},
		{"through 分隔", "2001 through 2004", "01/01/2001", "01/01/2004"},
		{"短横线", "01/2019-03/2021", "01/01/2019", "01/03/2021"},
		{"单个日期", "May 2021", "01/05/2021", ""},
		{"单个 ISO 日期不拆分", "2020-01-15", "15/01/2020", ""},
		{"空输入", "", "", ""},
		{"无日期", "no dates here", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end := ExtractDateRange(tc.in)
			assert.Equal(t, tc.wantStart, start, "开始日期不符: %q", tc.in)
			assert.Equal(t, tc.wantEnd, end, "结束日期不符: %q", tc.in)
		})
	}
}
