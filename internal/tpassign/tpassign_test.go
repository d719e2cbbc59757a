package tpassign

import (
	"reflect"
	"testing"
)

func TestAssign(t *testing.T) {
	tps := []float64{2010, 2020, 2030}

	tests := []struct {
		name      string
		mode      string
		mapping   []int
		numTrades int
		tps       []float64
		want      []float64
		wantErr   bool
	}{
		{
			name: "none — всем по нулям",
			mode: ModeNone, numTrades: 3, tps: tps,
			want: []float64{0, 0, 0},
		},
		{
			name: "first_tp_first_trade — TP только первой сделке",
			mode: ModeFirstTPFirst, numTrades: 3, tps: tps,
			want: []float64{2010, 0, 0},
		},
		{
			name: "first_tp на одну сделку",
			mode: ModeFirstTPFirst, numTrades: 1, tps: tps,
			want: []float64{2010},
		},
		{
			name: "first_tp без тейков — все без TP",
			mode: ModeFirstTPFirst, numTrades: 2, tps: nil,
			want: []float64{0, 0},
		},
		{
			name: "custom_mapping с пропуском",
			mode: ModeCustomMapping, mapping: []int{2, -1, 0}, numTrades: 3, tps: tps,
			want: []float64{2030, 0, 2010},
		},
		{
			name: "короткий маппинг добивается пустыми слотами",
			mode: ModeCustomMapping, mapping: []int{0, 1}, numTrades: 3, tps: tps,
			want: []float64{2010, 2020, 0},
		},
		{
			name: "индекс вне списка — слот без TP",
			mode: ModeCustomMapping, mapping: []int{0, 1, 5}, numTrades: 3, tps: tps,
			want: []float64{2010, 2020, 0},
		},
		{
			name: "неизвестный режим",
			mode: "wild", numTrades: 1, tps: tps,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Assign(tc.mode, tc.mapping, tc.numTrades, tc.tps)
			if tc.wantErr {
				if err == nil {
					t.Fatal("ждали ошибку")
				}
				return
			}
			if err != nil {
				t.Fatalf("Assign: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Assign = %v, ждали %v", got, tc.want)
			}
		})
	}
}
