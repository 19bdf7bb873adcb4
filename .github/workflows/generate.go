package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

type PushTrigger struct {
	Branches []string `yaml:"branches,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
}

type Trigger struct {
	Push        PushTrigger  `yaml:"push,omitempty"`
	PullRequest *PushTrigger `yaml:"pull_request,omitempty"`
}

type Args map[string]interface{}

type Step struct {
	Name string            `yaml:"name,omitempty"`
	If   string            `yaml:"if,omitempty"`
	Uses string            `yaml:"uses,omitempty"`
	ID   string            `yaml:"id,omitempty"`
	Run  string            `yaml:"run,omitempty"`
	With Args              `yaml:"with,omitempty"`
	Env  map[string]string `yaml:"env,omitempty"`
}

type Service struct {
	Image   string            `yaml:"image"`
	Env     map[string]string `yaml:"env,omitempty"`
	Ports   []string          `yaml:"ports,omitempty"`
	Options string            `yaml:"options,omitempty"`
}

type Strategy struct {
	Matrix map[string][]string `yaml:"matrix"`
}

type Job struct {
	RunsOn   string             `yaml:"runs-on"`
	Needs    []string           `yaml:"needs,omitempty"`
	If       string             `yaml:"if,omitempty"`
	Strategy *Strategy          `yaml:"strategy,omitempty"`
	Services map[string]Service `yaml:"services,omitempty"`
	Steps    []Step             `yaml:"steps"`
}

type Workflow struct {
	Name string         `yaml:"name"`
	On   Trigger        `yaml:"on,omitempty"`
	Jobs map[string]Job `yaml:"jobs"`
}

const goVersion = "1.21"

var (
	stepCheckout = Step{Name: "Checkout", Uses: "actions/checkout@v4"}
	stepSetupGo  = Step{
		Name: "Set up Go",
		Uses: "actions/setup-go@v5",
		With: Args{"go-version": goVersion},
	}
)

// JobTest runs the whole test suite against a throwaway postgres so the
// snapshot catalog tests run too.
func JobTest() Job {
	return Job{
		RunsOn: "ubuntu-latest",
		Services: map[string]Service{
			"postgres": {
				Image: "postgres:14",
				Env:   map[string]string{"POSTGRES_PASSWORD": "postgres"},
				Ports: []string{"5432:5432"},
				Options: "--health-cmd pg_isready --health-interval 10s " +
					"--health-timeout 5s --health-retries 5",
			},
		},
		Steps: []Step{stepCheckout, stepSetupGo, {
			Name: "Vet",
			Run:  "go vet ./...",
		}, {
			Name: "Test",
			Run:  "go test ./...",
			Env: map[string]string{
				"PG_HOST": "localhost",
				"PG_PASS": "postgres",
			},
		}},
	}
}

// JobRelease cross-compiles the `vsfs` binary for each target in the matrix
// and attaches it to tagged releases.
func JobRelease(targets ...string) Job {
	return Job{
		RunsOn:   "ubuntu-latest",
		Needs:    []string{"test"},
		If:       "startsWith(github.ref, 'refs/tags/')",
		Strategy: &Strategy{Matrix: map[string][]string{"target": targets}},
		Steps: []Step{stepCheckout, stepSetupGo, {
			Name: "Build",
			Run: `GOOS="${TARGET%/*}" GOARCH="${TARGET#*/}" \
  go build -o "dist/vsfs-${TARGET%/*}-${TARGET#*/}" ./cmd/vsfs`,
			Env: map[string]string{"TARGET": "${{ matrix.target }}"},
		}, {
			Name: "Upload",
			Uses: "softprops/action-gh-release@v1",
			With: Args{"files": "dist/*"},
		}},
	}
}

func WorkflowCI(targets ...string) Workflow {
	return Workflow{
		Name: "ci",
		On: Trigger{
			Push: PushTrigger{
				Branches: []string{"*"},
				Tags:     []string{"v*"},
			},
			PullRequest: &PushTrigger{Branches: []string{"master"}},
		},
		Jobs: map[string]Job{
			"test":    JobTest(),
			"release": JobRelease(targets...),
		},
	}
}

func MarshalToWriter(w io.Writer, v interface{}) error {
	yamlEncoder := yaml.NewEncoder(w)
	yamlEncoder.SetIndent(2)
	if err := yamlEncoder.Encode(v); err != nil {
		return fmt.Errorf("marshaling to YAML: %w", err)
	}
	return nil
}

func main() {
	if err := MarshalToWriter(
		os.Stdout,
		WorkflowCI("linux/amd64", "linux/arm64", "darwin/arm64"),
	); err != nil {
		log.Fatalf("marshaling ci workflow: %v", err)
	}
}
