package bb

import (
	"reflect"
	"testing"
)

func TestToolCmdArgv(t *testing.T) {
	argv := NewToolCmd().
		Flag("mdtdevs", "a").
		Flag("ostdevs", "b").
		Argv(VerbStart)
	want := []string{"lod", "--mdtdevs=a", "--ostdevs=b", "start"}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("got %v, want %v", argv, want)
	}
}

func TestToolCmdSkipsEmptyValues(t *testing.T) {
	argv := NewToolCmd().
		Flag("node", "").
		Flag("mountpoint", "/mnt/lod").
		Flag("inet", "").
		Argv(VerbStop)
	want := []string{"lod", "--mountpoint=/mnt/lod", "stop"}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("got %v, want %v", argv, want)
	}
}

func TestToolCmdPreservesFlagOrder(t *testing.T) {
	argv := NewToolCmd().
		Flag("node", "n[1-4]").
		Flag("source", "/a").
		Flag("sourcelist", "/l").
		Flag("destination", "/b").
		Argv(VerbStageIn)
	want := []string{"lod", "--node=n[1-4]", "--source=/a", "--sourcelist=/l", "--destination=/b", "stage_in"}
	if !reflect.DeepEqual(argv, want) {
		t.Fatalf("got %v, want %v", argv, want)
	}
}
