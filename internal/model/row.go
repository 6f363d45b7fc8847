package model

// DemoTable はダッシュボードが読み取る外部テーブル名。
const DemoTable = "demo_data"

// Row はdemo_dataテーブルの1行を表す。
// IDは外部で採番される一意な整数、Dataはnullを取り得るテキスト列。
type Row struct {
	ID   int64   `json:"id"`
	Data *string `json:"data"`
}

// HasData はData列に表示可能な値があるかどうかを返す。
// nullと空文字列はどちらも値なしとして扱う。
func (r Row) HasData() bool {
	return r.Data != nil && *r.Data != ""
}

// Text はData列の値を返す。値がない場合は空文字列を返す。
func (r Row) Text() string {
	if r.Data == nil {
		return ""
	}
	return *r.Data
}

// StringPtr はテストやシード投入で使う文字列ポインタを返す。
func StringPtr(s string) *string {
	return &s
}
