package main

import "testing"

func TestBuildOverrides_Empty(t *testing.T) {
	*dataDir = ""
	*serverPort = 0
	*logLevel = ""

	overrides := buildOverrides()
	if len(overrides) != 0 {
		t.Errorf("expected no overrides, got %v", overrides)
	}
}

func TestBuildOverrides_SetValues(t *testing.T) {
	*dataDir = "/tmp/recall-test"
	*serverPort = 9090
	*logLevel = "debug"
	defer func() {
		*dataDir = ""
		*serverPort = 0
		*logLevel = ""
	}()

	overrides := buildOverrides()
	if overrides["data_dir"] != "/tmp/recall-test" {
		t.Errorf("expected data_dir override, got %v", overrides["data_dir"])
	}
	if overrides["server.port"] != 9090 {
		t.Errorf("expected server.port override, got %v", overrides["server.port"])
	}
	if overrides["log.level"] != "debug" {
		t.Errorf("expected log.level override, got %v", overrides["log.level"])
	}
}
