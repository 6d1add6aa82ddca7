package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
)

// RawResponse is a response split at the first blank line.
type RawResponse struct {
	StatusLine string
	Headers    map[string]string
	Body       []byte
	Raw        []byte
}

// ServerInstance is a running server process.
type ServerInstance struct {
	Cmd       *exec.Cmd
	Address   string
	LogBuffer *syncBuffer

	cancelCtx context.CancelFunc
	waitOnce  sync.Once
	waitErr   error
	exited    chan struct{}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// GetFreePort asks the kernel for a free open port that is ready to use.
func GetFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// WriteTempConfig writes configData as JSON or TOML into dir and returns the file path.
func WriteTempConfig(dir string, configData interface{}, format string) (string, error) {
	var data []byte
	var ext string
	var err error

	switch strings.ToLower(format) {
	case "json":
		data, err = json.MarshalIndent(configData, "", "  ")
		ext = ".json"
	case "toml":
		buf := new(bytes.Buffer)
		if err = toml.NewEncoder(buf).Encode(configData); err == nil {
			data = buf.Bytes()
		}
		ext = ".toml"
	default:
		err = fmt.Errorf("unsupported config format: %s", format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal config data to %s: %w", format, err)
	}

	path := filepath.Join(dir, "config"+ext)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write temp config file: %w", err)
	}
	return path, nil
}

// StartTestServer launches serverBinaryPath with -config configFile and waits
// until serverListenAddress accepts connections.
func StartTestServer(serverBinaryPath, configFile, serverListenAddress string, extraArgs ...string) (*ServerInstance, error) {
	fi, err := os.Stat(serverBinaryPath)
	if err != nil {
		return nil, fmt.Errorf("server binary path '%s' error: %w", serverBinaryPath, err)
	}
	if fi.IsDir() || fi.Mode()&0111 == 0 {
		return nil, fmt.Errorf("server binary path '%s' is a directory or not executable", serverBinaryPath)
	}

	ctx, cancel := context.WithCancel(context.Background())
	args := append([]string{"-config", configFile}, extraArgs...)
	cmd := exec.CommandContext(ctx, serverBinaryPath, args...)

	logs := &syncBuffer{}
	cmd.Stdout = logs
	cmd.Stderr = logs

	instance := &ServerInstance{
		Cmd:       cmd,
		Address:   serverListenAddress,
		LogBuffer: logs,
		cancelCtx: cancel,
		exited:    make(chan struct{}),
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start server process '%s': %w", serverBinaryPath, err)
	}
	go func() {
		instance.waitErr = cmd.Wait()
		close(instance.exited)
	}()

	deadline := time.Now().Add(10 * time.Second)
	for {
		conn, dialErr := net.DialTimeout("tcp", serverListenAddress, 200*time.Millisecond)
		if dialErr == nil {
			conn.Close()
			return instance, nil
		}
		select {
		case <-instance.exited:
			return nil, fmt.Errorf("server exited before becoming ready: %v. Logs captured:\n%s", instance.waitErr, logs.String())
		default:
		}
		if time.Now().After(deadline) {
			_ = instance.Stop()
			return nil, fmt.Errorf("server not ready at %s: %v. Logs captured:\n%s", serverListenAddress, dialErr, logs.String())
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// Stop sends SIGINT and waits for the process to exit, killing it after a timeout.
// It returns the process exit error, if any.
func (s *ServerInstance) Stop() error {
	s.waitOnce.Do(func() {
		_ = s.Cmd.Process.Signal(syscall.SIGINT)
		select {
		case <-s.exited:
		case <-time.After(5 * time.Second):
			s.cancelCtx()
			<-s.exited
		}
		s.cancelCtx()
	})
	return s.waitErr
}

// RawRequest writes raw to addr and reads until the server closes the connection.
func RawRequest(addr, raw string) (*RawResponse, error) {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if err := conn.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return nil, err
	}
	if _, err := io.WriteString(conn, raw); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(conn)
	if err != nil {
		return nil, err
	}
	return ParseRawResponse(data)
}

// ParseRawResponse splits data into status line, headers and body. Header
// lines may end in LF or CRLF.
func ParseRawResponse(data []byte) (*RawResponse, error) {
	idx := bytes.Index(data, []byte("\r\n\r\n"))
	if idx < 0 {
		return nil, fmt.Errorf("no header terminator in %d byte response", len(data))
	}
	head := strings.ReplaceAll(string(data[:idx]), "\r\n", "\n")
	lines := strings.Split(head, "\n")

	resp := &RawResponse{
		StatusLine: lines[0],
		Headers:    make(map[string]string, len(lines)-1),
		Body:       data[idx+4:],
		Raw:        data,
	}
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		resp.Headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	return resp, nil
}
