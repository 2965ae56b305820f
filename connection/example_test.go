// File: connection/example_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package connection_test

import (
	"fmt"
	"time"

	"github.com/momentics/nexuskit/api"
	"github.com/momentics/nexuskit/connection"
	"github.com/momentics/nexuskit/transport"
)

// ExampleShell drives a raw TCP-style connection over an in-memory
// pipe: the application end sends through the shell's full outgoing
// path while the far end reads plain bytes.
func ExampleShell() {
	client, server := transport.Pipe()

	shell := connection.New(
		api.NewTCPEndpoint("example.test", 7000),
		connection.WithDialer(&transport.PipeDialer{Conn: client}),
	)
	if err := shell.Connect(); err != nil {
		fmt.Println("connect:", err)
		return
	}
	defer shell.Close()

	if err := shell.Send([]byte("hello")); err != nil {
		fmt.Println("send:", err)
		return
	}
	data, err := server.Receive(time.Second)
	if err != nil {
		fmt.Println("receive:", err)
		return
	}
	fmt.Println(string(data))
	// Output: hello
}
