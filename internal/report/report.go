// Package report renders inquiry results as chat text.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"eve-jita-price/internal/engine"
)

// Separator joins the blocks of a report.
const Separator = "\n--------------\n"

// Labels holds the display strings of one report language.
type Labels struct {
	Sell       string
	Average    string
	Buy        string
	Unit       string
	SetTotal   string
	Bundle     string // format verb receives the multiplier
	EmptyQuery string
	NotFound   string // format verb receives the query
	TooMany    string // format verb receives the match count
	Unavail    string
}

// Chinese is the default label set.
var Chinese = Labels{
	Sell:       "最低卖价：",
	Average:    "平均价格：",
	Buy:        "最高买价：",
	Unit:       "ISK",
	SetTotal:   "以上物品总价",
	Bundle:     "%dx PLEX",
	EmptyQuery: "请输入物品名称",
	NotFound:   `没有找到名称为 "%s" 的物品`,
	TooMany:    "找到 %d 个结果，请缩小搜索范围",
	Unavail:    "物品数据暂不可用，请稍后再试",
}

var English = Labels{
	Sell:       "Lowest sell: ",
	Average:    "Average: ",
	Buy:        "Highest buy: ",
	Unit:       "ISK",
	SetTotal:   "Total of the items above",
	Bundle:     "%dx PLEX",
	EmptyQuery: "Please enter an item name",
	NotFound:   `No item named "%s" was found`,
	TooMany:    "Found %d results, please narrow your search",
	Unavail:    "Item data is unavailable, try again later",
}

// LabelsFor returns the label set for a language code. Unknown codes get Chinese.
func LabelsFor(lang string) Labels {
	if strings.EqualFold(lang, "en") {
		return English
	}
	return Chinese
}

// FormatNumber groups the integer digits by thousands and keeps two decimals.
// Non-finite values render as NaN.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NaN"
	}
	return humanize.FormatFloat("#,###.##", v)
}

// Formatter turns aggregated quotes into report text.
type Formatter struct {
	Labels Labels
}

// NewFormatter creates a Formatter for the given language code.
func NewFormatter(lang string) Formatter {
	return Formatter{Labels: LabelsFor(lang)}
}

// Format renders one block per item followed by the combined totals.
func (f Formatter) Format(res engine.Result) string {
	blocks := make([]string, 0, len(res.Lines)+len(res.Totals))
	for _, q := range res.Lines {
		title := q.Item.Name.ZH + "/" + q.Item.Name.EN
		blocks = append(blocks, f.block(title, q.Sell, q.Mid, q.Buy))
	}
	for _, t := range res.Totals {
		blocks = append(blocks, f.block(f.totalTitle(t), t.Sell, t.Mid, t.Buy)+"\n")
	}
	return strings.Join(blocks, Separator)
}

// NotFound is the reply for a query with no matches.
func (f Formatter) NotFound(query string) string {
	return fmt.Sprintf(f.Labels.NotFound, query)
}

// TooMany is the reply for a query with more matches than allowed.
func (f Formatter) TooMany(count int) string {
	return fmt.Sprintf(f.Labels.TooMany, count)
}

func (f Formatter) totalTitle(t engine.Total) string {
	if t.Kind == engine.BundleTotal {
		return fmt.Sprintf(f.Labels.Bundle, t.Multiplier)
	}
	return f.Labels.SetTotal
}

func (f Formatter) block(title string, sell, mid, buy float64) string {
	var b strings.Builder
	b.WriteString(title)
	f.line(&b, f.Labels.Sell, sell)
	f.line(&b, f.Labels.Average, mid)
	f.line(&b, f.Labels.Buy, buy)
	return b.String()
}

func (f Formatter) line(b *strings.Builder, label string, v float64) {
	fmt.Fprintf(b, "\n  -%s%s %s", label, FormatNumber(v), f.Labels.Unit)
}
