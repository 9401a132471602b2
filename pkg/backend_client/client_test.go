package backend_client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	. "github.com/smartystreets/goconvey/convey"

	"inspect-go/internal/dto"
)

func newTestClient(ts *httptest.Server) *Client {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewClient(ts.URL, 5*time.Second, logger)
}

func TestClient_Search(t *testing.T) {
	Convey("Search should send paging params and decode typed records", t, func() {
		var got map[string]string
		mux := http.NewServeMux()
		mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			got = map[string]string{
				"q": q.Get("q"), "type": q.Get("type"), "page": q.Get("page"),
				"page_size": q.Get("page_size"), "context_size": q.Get("context_size"),
			}
			_, _ = io.WriteString(w, `{"results":[{"data":{"type":"message","id":7,"content":"hi","highlighted_content":"<mark>hi</mark>"}},{"data":null}],
				"page":1,"page_size":20,"total":2,"total_pages":1,"search_type":"keyword","query":"hi"}`)
		})
		ts := httptest.NewServer(mux)
		defer ts.Close()

		out, err := newTestClient(ts).Search(context.Background(), SearchParams{Query: "hi", Type: "keyword", Page: 1, PageSize: 20, ContextSize: 3})
		So(err, ShouldBeNil)
		So(got, ShouldResemble, map[string]string{"q": "hi", "type": "keyword", "page": "1", "page_size": "20", "context_size": "3"})
		So(out.Total, ShouldEqual, 2)
		So(out.SearchType, ShouldEqual, "keyword")
		So(len(out.Results), ShouldEqual, 2)
		So(out.Results[0].Data.Identifier(), ShouldEqual, "7")
		So(out.Results[0].Data.Highlight("content"), ShouldEqual, "<mark>hi</mark>")
		So(out.Results[1].Data, ShouldBeNil)
	})
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	Convey("Given a backend with failing endpoints", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/task-status/missing", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"status":"error","message":"任务不存在或已过期"}`)
		})
		mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":"搜索引擎未初始化。"}`)
		})
		mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `<html>not json</html>`)
		})
		ts := httptest.NewServer(mux)
		defer ts.Close()
		client := newTestClient(ts)

		Convey("404 is classified as NotFound", func() {
			_, err := client.TaskStatus(context.Background(), "missing")
			So(err, ShouldNotBeNil)
			So(IsNotFound(err), ShouldBeTrue)
		})

		Convey("non-2xx is a network failure carrying the backend message", func() {
			_, err := client.Search(context.Background(), SearchParams{Query: "x", Page: 1, PageSize: 20})
			So(IsNetworkFailure(err), ShouldBeTrue)
			So(Message(err), ShouldContainSubstring, "搜索引擎未初始化。")
			So(Message(err), ShouldContainSubstring, "503")
		})

		Convey("an unparseable body is a malformed response", func() {
			_, err := client.Stats(context.Background())
			So(IsMalformed(err), ShouldBeTrue)
		})

		Convey("an unreachable backend is a network failure", func() {
			dead := NewClient("http://127.0.0.1:1", time.Second, logrus.New())
			_, err := dead.Stats(context.Background())
			So(IsNetworkFailure(err), ShouldBeTrue)
		})
	})
}

func TestClient_Favorites(t *testing.T) {
	Convey("Favorite mutations check the status field", t, func() {
		var bodies []dto.FavoriteRequest
		addStatus := "info"
		mux := http.NewServeMux()
		mux.HandleFunc("/api/favorites/add", func(w http.ResponseWriter, r *http.Request) {
			var body dto.FavoriteRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			bodies = append(bodies, body)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": addStatus, "message": "已在收藏夹中"})
		})
		mux.HandleFunc("/api/favorites/remove", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "未在收藏夹中找到该项目"})
		})
		ts := httptest.NewServer(mux)
		defer ts.Close()
		client := newTestClient(ts)

		_, err := client.AddFavorite(context.Background(), dto.FavoriteRequest{Type: "message", ID: "1", Query: "q"})
		So(err, ShouldBeNil)
		So(bodies, ShouldResemble, []dto.FavoriteRequest{{Type: "message", ID: "1", Query: "q"}})

		addStatus = "error"
		_, err = client.AddFavorite(context.Background(), dto.FavoriteRequest{Type: "message", ID: "1"})
		So(IsApplicationError(err), ShouldBeTrue)

		_, err = client.RemoveFavorite(context.Background(), dto.FavoriteRequest{Type: "message", ID: "1"})
		So(IsApplicationError(err), ShouldBeTrue)
		So(Message(err), ShouldEqual, "未在收藏夹中找到该项目")
	})
}

func TestClient_TolerantRecords(t *testing.T) {
	Convey("Records with unexpected field types do not fail the whole response", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"results":[
				{"data":{"type":"contact","id":"c1","name":"Alice","phone":"123"}},
				{"data":{"type":"message","id":2,"sender":13800138000,"content":42,"is_sent":1}},
				{"data":{"type":"message","id":3,"score":"high"}},
				5
			],"page":1,"total":4,"total_pages":1}`)
		})
		mux.HandleFunc("/api/messages", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"messages":[{"type":"message","id":"m1","remark":7,"is_sent":"true"},"broken"],"page":1,"total":2,"total_pages":1}`)
		})
		mux.HandleFunc("/api/call-records/all-call-records", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"success","stats":{"total_calls":3,"top_contacts":[{"phone":13800138000,"call_count":3,"total_duration":"0:01:00"}]}}`)
		})
		ts := httptest.NewServer(mux)
		defer ts.Close()
		client := newTestClient(ts)

		out, err := client.Search(context.Background(), SearchParams{Query: "x", Page: 1, PageSize: 20})
		So(err, ShouldBeNil)
		So(len(out.Results), ShouldEqual, 4)
		So(out.Results[0].Data.Name.String(), ShouldEqual, "Alice")

		msg := out.Results[1].Data
		So(msg.DecodeErr, ShouldBeNil)
		So(msg.Sender.String(), ShouldEqual, "13800138000")
		So(msg.Content.String(), ShouldEqual, "42")
		So(bool(msg.IsSent), ShouldBeTrue)

		So(out.Results[2].Data.DecodeErr, ShouldNotBeNil)
		So(out.Results[2].Data.Identifier(), ShouldEqual, "3")
		So(out.Results[3].Data.DecodeErr, ShouldNotBeNil)

		msgs, err := client.Messages(context.Background(), 1, 50)
		So(err, ShouldBeNil)
		So(len(msgs.Messages), ShouldEqual, 2)
		So(msgs.Messages[0].Remark.String(), ShouldEqual, "7")
		So(bool(msgs.Messages[0].IsSent), ShouldBeTrue)
		So(msgs.Messages[1].DecodeErr, ShouldNotBeNil)

		calls, err := client.CallRecords(context.Background(), "abc123")
		So(err, ShouldBeNil)
		So(calls.Stats.TopContacts[0].Phone.String(), ShouldEqual, "13800138000")
	})
}

func TestClient_CallRecords(t *testing.T) {
	Convey("Call record endpoints accept success=true and report error text", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/api/call-records/all-call-records", func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("excel_id") == "abc123" {
				_, _ = io.WriteString(w, `{"status":"success","stats":{"total_calls":3,"total_duration":"0:01:00","top_contacts":[{"phone":"1","call_count":3,"total_duration":"0:01:00"}]}}`)
				return
			}
			_, _ = io.WriteString(w, `{"success":false,"error":"找不到文件"}`)
		})
		mux.HandleFunc("/api/call-records/update-chart", func(w http.ResponseWriter, r *http.Request) {
			var body dto.ChartRequest
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"success": true, "chart_id": "chart-" + body.ExcelID, "chart_data": "data:image/png;base64,AA",
			})
		})
		ts := httptest.NewServer(mux)
		defer ts.Close()
		client := newTestClient(ts)

		out, err := client.CallRecords(context.Background(), "abc123")
		So(err, ShouldBeNil)
		So(out.Stats.TotalCalls, ShouldEqual, 3)
		So(out.Stats.TopContacts[0].CallCount, ShouldEqual, 3)

		_, err = client.CallRecords(context.Background(), "other")
		So(IsApplicationError(err), ShouldBeTrue)
		So(Message(err), ShouldEqual, "找不到文件")

		chart, err := client.UpdateChart(context.Background(), "abc123", 5)
		So(err, ShouldBeNil)
		So(chart.ChartID, ShouldEqual, "chart-abc123")

		So(client.DownloadURL("excel", "a b"), ShouldEqual, ts.URL+"/api/call-records/download?id=a+b&type=excel")
	})
}

func TestClient_StartProcessing(t *testing.T) {
	Convey("StartProcessing uploads every file under files[]", t, func() {
		var names []string
		var contents []string
		mux := http.NewServeMux()
		mux.HandleFunc("/api/start-processing", func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseMultipartForm(1 << 20)
			for _, fh := range r.MultipartForm.File["files[]"] {
				names = append(names, fh.Filename)
				f, _ := fh.Open()
				b, _ := io.ReadAll(f)
				_ = f.Close()
				contents = append(contents, string(b))
			}
			_, _ = io.WriteString(w, `{"status":"started","task_id":"t-1","message":"任务已启动"}`)
		})
		mux.HandleFunc("/api/task-status/t-1", func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"task_id":"t-1","status":"completed","progress":100,"error":"","result_files":{"excel":"abc123"}}`)
		})
		ts := httptest.NewServer(mux)
		defer ts.Close()
		client := newTestClient(ts)

		out, err := client.StartProcessing(context.Background(), []UploadFile{
			{Name: "a.json", Reader: strings.NewReader(`[1]`)},
			{Name: "b.json", Reader: strings.NewReader(`[2]`)},
		})
		So(err, ShouldBeNil)
		So(out.TaskID, ShouldEqual, "t-1")
		So(names, ShouldResemble, []string{"a.json", "b.json"})
		So(contents, ShouldResemble, []string{"[1]", "[2]"})

		status, err := client.TaskStatus(context.Background(), "t-1")
		So(err, ShouldBeNil)
		So(status.Status, ShouldEqual, "completed")
		So(status.ResultFiles.Excel, ShouldEqual, "abc123")
	})
}
