package service

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"inspect-go/internal/dto"
	"inspect-go/internal/models"
	"inspect-go/pkg/backend_client"
)

const pngData = "data:image/png;base64,iVBORw0KGgo="

func TestCallRecordService(t *testing.T) {
	Convey("通话记录服务", t, func() {
		api := newFakeAPI()
		api.callStats = &dto.CallStats{
			TotalCalls:  1234,
			TopContacts: []dto.TopContact{{Phone: "13800000000", CallCount: 9, TotalDuration: "0:12:00"}},
		}
		api.chartData = pngData
		store := newMemStore()
		svc := NewCallRecordService(api, store, testUIConfig(), quietLogger())
		ctx := context.Background()

		Convey("没有选定文件时提示先加载", func() {
			html := string(svc.Load(ctx, "s1"))
			So(html, ShouldContainSubstring, ErrNoCallRecords.Error())
			So(api.count("call_records"), ShouldEqual, 0)

			_, err := svc.DownloadURL("s1", "excel")
			So(err, ShouldEqual, ErrNoCallRecords)
		})

		Convey("选定文件后加载统计和图表", func() {
			html := string(svc.LoadExcel(ctx, "s1", "abc123", ""))
			So(html, ShouldContainSubstring, "1,234")
			So(html, ShouldContainSubstring, "13800000000")
			So(html, ShouldContainSubstring, `id="callChartImage"`)
			So(api.excels(), ShouldResemble, []string{"abc123"})

			sel, _ := store.GetCallSelection("s1")
			So(sel.ExcelID, ShouldEqual, "abc123")
			So(sel.ChartID, ShouldEqual, "chart-abc123")
			So(sel.Threshold, ShouldEqual, 5)

			Convey("更新阈值后保存", func() {
				chart := string(svc.UpdateChart(ctx, "s1", 12))
				So(chart, ShouldContainSubstring, pngData)

				sel, _ := store.GetCallSelection("s1")
				So(sel.Threshold, ShouldEqual, 12)
			})

			Convey("下载地址指向后端", func() {
				url, err := svc.DownloadURL("s1", "chart")
				So(err, ShouldBeNil)
				So(url, ShouldContainSubstring, "id=chart-abc123")

				url, err = svc.DownloadURL("s1", "excel")
				So(err, ShouldBeNil)
				So(url, ShouldContainSubstring, "id=abc123")
			})
		})

		Convey("没有图表时不能下载图表", func() {
			So(store.SaveCallSelection(&models.CallSelection{SessionID: "s1", ExcelID: "abc123"}), ShouldBeNil)
			_, err := svc.DownloadURL("s1", "chart")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldEqual, "无图表可下载。")
		})

		Convey("后端业务失败", func() {
			api.callErr = &backend_client.Error{Kind: backend_client.ApplicationError, Op: "call_records", Message: "文件不存在"}
			html := string(svc.LoadExcel(ctx, "s1", "missing", ""))
			So(html, ShouldContainSubstring, "加载通话数据失败: 文件不存在")
			So(api.count("update_chart"), ShouldEqual, 0)
		})

		Convey("图表失败不影响统计", func() {
			api.chartErr = &backend_client.Error{Kind: backend_client.NetworkFailure, Op: "update_chart", StatusCode: 503}
			html := string(svc.LoadExcel(ctx, "s1", "abc123", ""))
			So(html, ShouldContainSubstring, "1,234")
			So(html, ShouldContainSubstring, "加载图表出错")
		})
	})
}

func TestStatsAndHistory(t *testing.T) {
	Convey("数据概览和搜索历史", t, func() {
		api := newFakeAPI()
		api.stats = &dto.StatsResponse{MessagesCount: 1500, ContactsCount: 3}
		api.history = []string{"张三", "张三丰", "李四", "张"}
		ctx := context.Background()

		Convey("概览显示计数和更新时间", func() {
			stats := NewStatsService(api, quietLogger())
			stats.now = func() time.Time { return time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC) }
			html := string(stats.Overview(ctx))
			So(html, ShouldContainSubstring, "1,500")
			So(html, ShouldContainSubstring, "最后更新")
		})

		Convey("建议按子串过滤并排除完全相同的词", func() {
			svc := NewSearchHistoryService(api, testUIConfig(), quietLogger())
			doc := parseHTML(t, string(svc.Suggestions(ctx, "张三")))
			So(doc.Find(".suggestion-item").Length(), ShouldEqual, 1)
			So(doc.Find(".suggestion-item").Text(), ShouldEqual, "张三丰")
		})

		Convey("清空后历史不再显示", func() {
			svc := NewSearchHistoryService(api, testUIConfig(), quietLogger())
			So(string(svc.History(ctx)), ShouldContainSubstring, "李四")

			html, err := svc.Clear(ctx)
			So(err, ShouldBeNil)
			So(html, ShouldBeEmpty)
			So(api.count("clear_search_history"), ShouldEqual, 1)
		})
	})
}
