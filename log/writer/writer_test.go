package writer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hatlonely/tql/cfg/storage"
	"github.com/hatlonely/tql/ref"
	. "github.com/smartystreets/goconvey/convey"
)

func TestConsoleWriter(t *testing.T) {
	Convey("ConsoleWriter", t, func() {
		w, err := NewConsoleWriterWithOptions(nil)
		So(err, ShouldBeNil)
		So(w.w, ShouldEqual, os.Stdout)
		So(w.Close(), ShouldBeNil)

		w, err = NewConsoleWriterWithOptions(&ConsoleWriterOptions{Target: "stderr"})
		So(err, ShouldBeNil)
		So(w.w, ShouldEqual, os.Stderr)

		_, err = NewConsoleWriterWithOptions(&ConsoleWriterOptions{Target: "tty"})
		So(err, ShouldNotBeNil)
	})
}

func TestFileWriter(t *testing.T) {
	Convey("FileWriter", t, func() {
		path := filepath.Join(t.TempDir(), "logs", "tql.log")

		w, err := NewFileWriterWithOptions(&FileWriterOptions{Path: path})
		So(err, ShouldBeNil)
		_, err = w.Write([]byte("line1\n"))
		So(err, ShouldBeNil)
		So(w.Close(), ShouldBeNil)
		So(w.Close(), ShouldBeNil)

		_, err = w.Write([]byte("line2\n"))
		So(err, ShouldNotBeNil)

		// 追加写入
		w, err = NewFileWriterWithOptions(&FileWriterOptions{Path: path})
		So(err, ShouldBeNil)
		_, err = w.Write([]byte("line3\n"))
		So(err, ShouldBeNil)
		So(w.Close(), ShouldBeNil)

		data, err := os.ReadFile(path)
		So(err, ShouldBeNil)
		So(string(data), ShouldEqual, "line1\nline3\n")

		_, err = NewFileWriterWithOptions(&FileWriterOptions{})
		So(err, ShouldNotBeNil)
	})
}

func TestMultiWriter(t *testing.T) {
	Convey("MultiWriter", t, func() {
		dir := t.TempDir()
		a, b := filepath.Join(dir, "a.log"), filepath.Join(dir, "b.log")

		Convey("配置创建", func() {
			w, err := NewWriterWithOptions(&ref.TypeOptions{
				Namespace: Namespace,
				Type:      "MultiWriter",
				Options: storage.NewMapStorage(map[string]any{
					"writers": []any{
						map[string]any{"namespace": Namespace, "type": "FileWriter", "options": map[string]any{"path": a}},
						map[string]any{"namespace": Namespace, "type": "FileWriter", "options": map[string]any{"path": b}},
					},
				}),
			})
			So(err, ShouldBeNil)

			n, err := w.Write([]byte("hello\n"))
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 6)
			So(w.Close(), ShouldBeNil)

			for _, path := range []string{a, b} {
				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "hello\n")
			}
		})

		Convey("某个输出器失败", func() {
			fa, err := NewFileWriterWithOptions(&FileWriterOptions{Path: a})
			So(err, ShouldBeNil)
			fb, err := NewFileWriterWithOptions(&FileWriterOptions{Path: b})
			So(err, ShouldBeNil)
			So(fb.Close(), ShouldBeNil)

			w := NewMultiWriter(fa, fb)
			_, err = w.Write([]byte("x"))
			So(err, ShouldNotBeNil)
			So(w.Close(), ShouldBeNil)
		})

		Convey("空配置", func() {
			_, err := NewMultiWriterWithOptions(&MultiWriterOptions{})
			So(err, ShouldNotBeNil)
		})

		Convey("未注册的输出器", func() {
			_, err := NewMultiWriterWithOptions(&MultiWriterOptions{Writers: []ref.TypeOptions{
				{Namespace: Namespace, Type: "FileWriter", Options: &FileWriterOptions{Path: a}},
				{Namespace: Namespace, Type: "KafkaWriter"},
			}})
			So(err, ShouldNotBeNil)
		})
	})
}
