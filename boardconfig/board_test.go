package boardconfig

import (
	"os"
	"path/filepath"
	"testing"
)

const hifive1 = `{
  "build": {"mcu": "fe310"},
  "debug": {
    "jlink_device": "FE310",
    "tools": {
      "jlink": {"server": {"arguments": ["-singlerun"]}},
      "renode": {"server": {"arguments": ["--disable-xwt", "-e", "include @scripts/single-node/sifive_fe310.resc"]}},
      "ftdi": {"onboard": true, "server": {"package": "tool-openocd-riscv", "arguments": ["-f", "interface/ftdi/olimex.cfg"]}}
    }
  },
  "name": "HiFive1",
  "upload": {
    "flash_start": "0x20000000",
    "maximum_size": 16777216,
    "protocol": "jlink",
    "protocols": ["jlink", "ftdi", "renode"],
    "use_1200bps_touch": true
  }
}`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hifive1.json")
	if err := os.WriteFile(path, []byte(hifive1), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := Load(path)
	if err != nil {
		t.Fatal("could not load board:", err)
	}
	if b.ID() != "hifive1" {
		t.Errorf("ID() = %q, want hifive1", b.ID())
	}
	if b.Name() != "HiFive1" || b.MCU() != "fe310" {
		t.Errorf("unexpected name/mcu: %q %q", b.Name(), b.MCU())
	}
	u := b.Upload()
	if u.Protocol != "jlink" || u.FlashStart != "0x20000000" || !u.Use1200bpsTouch {
		t.Errorf("unexpected upload section: %+v", u)
	}
	if u.DisableFlushing || u.WaitForUploadPort {
		t.Errorf("absent booleans must default to false: %+v", u)
	}
	if u.MaximumSize != 16777216 {
		t.Errorf("MaximumSize = %d", u.MaximumSize)
	}
	if b.JLinkDevice() != "FE310" {
		t.Errorf("JLinkDevice() = %q", b.JLinkDevice())
	}
	names := b.ToolNames()
	if len(names) != 3 || names[0] != "ftdi" || names[2] != "renode" {
		t.Errorf("ToolNames() = %v", names)
	}
}

func TestToolIsCopied(t *testing.T) {
	b, err := Parse("hifive1", []byte(hifive1))
	if err != nil {
		t.Fatal(err)
	}
	tool, ok := b.Tool("ftdi")
	if !ok || tool.Server == nil {
		t.Fatal("ftdi tool missing")
	}
	tool.Server.Arguments[0] = "changed"
	again, _ := b.Tool("ftdi")
	if again.Server.Arguments[0] != "-f" {
		t.Errorf("board manifest was mutated through Tool(): %v", again.Server.Arguments)
	}
	if _, ok := b.Tool("stlink"); ok {
		t.Error("unexpected stlink tool")
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse("bad", []byte("upload: [")); err == nil {
		t.Error("expected an error for a malformed manifest")
	}
}

func TestProjectProtocol(t *testing.T) {
	b, err := Parse("hifive1", []byte(hifive1))
	if err != nil {
		t.Fatal(err)
	}
	var p Project
	if got := p.Protocol(b); got != "jlink" {
		t.Errorf("default protocol = %q, want jlink", got)
	}
	p.UploadProtocol = "renode"
	if got := p.Protocol(b); got != "renode" {
		t.Errorf("overridden protocol = %q, want renode", got)
	}
	if p.ProgramName() != "firmware" {
		t.Errorf("ProgramName() = %q", p.ProgramName())
	}
}

func TestLoadProject(t *testing.T) {
	p, err := LoadProject("")
	if err != nil || p.UploadProtocol != "" {
		t.Errorf("LoadProject(\"\") = %+v, %v", p, err)
	}

	path := filepath.Join(t.TempDir(), "project.yaml")
	data := "upload_protocol: custom\nupload_command: mytool --port $UPLOAD_PORT $SOURCE\nupload_flags: [-v, -x]\ndebug_speed: \"1000\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err = LoadProject(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.UploadProtocol != "custom" || p.DebugSpeed != "1000" || len(p.UploadFlags) != 2 {
		t.Errorf("unexpected project: %+v", p)
	}

	if err := os.WriteFile(path, []byte("upload_speed: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProject(path); err == nil {
		t.Error("expected an error for an unknown project option")
	}
}
