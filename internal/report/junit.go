package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/beevik/etree"
)

// WriteJUnit persists the run as a JUnit XML file with one testsuite per
// feature, the shape CI systems ingest.
func WriteJUnit(run *Run, path string) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	summary := Summarize(run)
	suites := doc.CreateElement("testsuites")
	suites.CreateAttr("name", "gherkit")
	suites.CreateAttr("tests", fmt.Sprintf("%d", summary.Total))
	suites.CreateAttr("failures", fmt.Sprintf("%d", summary.Failed))
	suites.CreateAttr("time", junitSeconds(summary.Duration))

	byFeature := make(map[string]*etree.Element)
	for _, fs := range summary.Features {
		suite := suites.CreateElement("testsuite")
		suite.CreateAttr("name", fs.Feature)
		suite.CreateAttr("tests", fmt.Sprintf("%d", fs.Total))
		suite.CreateAttr("failures", fmt.Sprintf("%d", fs.Failed))
		byFeature[fs.Feature] = suite
	}

	for _, s := range run.Scenarios {
		suite := byFeature[s.Feature]
		if suite == nil {
			continue
		}
		testcase := suite.CreateElement("testcase")
		testcase.CreateAttr("name", s.Name)
		testcase.CreateAttr("classname", s.Feature)
		testcase.CreateAttr("time", junitSeconds(s.Duration))
		if s.Status == StatusFailed {
			failure := testcase.CreateElement("failure")
			failure.CreateAttr("message", s.Error)
			if s.TracePath != "" {
				failure.SetText("trace: " + s.TracePath)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	doc.Indent(2)
	if err := doc.WriteToFile(path); err != nil {
		return fmt.Errorf("write junit report: %w", err)
	}
	return nil
}

func junitSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
