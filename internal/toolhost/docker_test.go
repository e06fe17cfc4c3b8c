package toolhost

import (
	"reflect"
	"testing"
)

func TestNewManager(t *testing.T) {
	tests := []struct {
		name         string
		cfg          ServiceConfig
		wantErr      bool
		wantContName string
		wantURL      string
	}{
		{
			name:         "defaults applied",
			cfg:          ServiceConfig{Name: "marker", Image: "marker-server:latest", HostPort: "8765"},
			wantContName: "docbench-marker",
			wantURL:      "http://localhost:8765",
		},
		{
			name: "explicit container name takes precedence",
			cfg: ServiceConfig{
				Name:          "marker",
				Image:         "marker-server:latest",
				HostPort:      "8765",
				ContainerName: "my-custom-container",
			},
			wantContName: "my-custom-container",
			wantURL:      "http://localhost:8765",
		},
		{
			name:    "missing name",
			cfg:     ServiceConfig{Image: "marker-server:latest", HostPort: "8765"},
			wantErr: true,
		},
		{
			name:    "missing image",
			cfg:     ServiceConfig{Name: "marker", HostPort: "8765"},
			wantErr: true,
		},
		{
			name:    "missing host port",
			cfg:     ServiceConfig{Name: "marker", Image: "marker-server:latest"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr, err := NewManager(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewManager() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewManager() error = %v", err)
			}
			defer mgr.Close()

			if mgr.ContainerName() != tt.wantContName {
				t.Errorf("ContainerName() = %q, want %q", mgr.ContainerName(), tt.wantContName)
			}
			if mgr.URL() != tt.wantURL {
				t.Errorf("URL() = %q, want %q", mgr.URL(), tt.wantURL)
			}
			if mgr.Service() != tt.cfg.Name {
				t.Errorf("Service() = %q, want %q", mgr.Service(), tt.cfg.Name)
			}
		})
	}
}

func TestNewManager_PortAndHealthDefaults(t *testing.T) {
	mgr, err := NewManager(ServiceConfig{Name: "mineru", Image: "mineru:latest", HostPort: "9020"})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	if string(mgr.containerPort) != "9020/tcp" {
		t.Errorf("container port should default to host port, got %s", mgr.containerPort)
	}
	if mgr.healthPath != DefaultHealthPath {
		t.Errorf("health path should default to %s, got %s", DefaultHealthPath, mgr.healthPath)
	}

	custom, err := NewManager(ServiceConfig{
		Name:          "mineru",
		Image:         "mineru:latest",
		HostPort:      "9020",
		ContainerPort: "8000",
		HealthPath:    "/healthz",
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer custom.Close()

	if string(custom.containerPort) != "8000/tcp" {
		t.Errorf("expected container port 8000/tcp, got %s", custom.containerPort)
	}
	if custom.healthPath != "/healthz" {
		t.Errorf("expected health path /healthz, got %s", custom.healthPath)
	}
}

func TestNewManager_Labels(t *testing.T) {
	mgr, err := NewManager(ServiceConfig{
		Name:     "marker",
		Image:    "marker-server:latest",
		HostPort: "8765",
		Labels:   map[string]string{"test-run": "abc"},
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer mgr.Close()

	if mgr.labels[Label] != "true" {
		t.Error("expected toolhost label on managed container")
	}
	if mgr.labels[Label+".service"] != "marker" {
		t.Error("expected service label on managed container")
	}
	if mgr.labels["test-run"] != "abc" {
		t.Error("expected provided labels to be merged")
	}
}

func TestEnvSlice(t *testing.T) {
	t.Run("sorted key=value form", func(t *testing.T) {
		got := envSlice(map[string]string{"ZED": "9", "API_KEY": "k", "MODE": "fast"})
		want := []string{"API_KEY=k", "MODE=fast", "ZED=9"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("envSlice() = %v, want %v", got, want)
		}
	})

	t.Run("nil for empty map", func(t *testing.T) {
		if got := envSlice(nil); got != nil {
			t.Errorf("envSlice(nil) = %v, want nil", got)
		}
	})
}

func TestContainerStatus_Values(t *testing.T) {
	statuses := []ContainerStatus{
		StatusRunning,
		StatusStopped,
		StatusNotFound,
		StatusStarting,
	}

	seen := make(map[ContainerStatus]bool)
	for _, s := range statuses {
		if seen[s] {
			t.Errorf("duplicate status value: %s", s)
		}
		seen[s] = true
	}
}
