// Package securedm provides a Go client SDK for ChirpSocial's end-to-end
// encrypted direct messaging.
//
// Messages are encrypted client-side with AES-256-GCM under a fresh message
// key per send; the message key is wrapped with RSA-2048-OAEP for both
// conversation participants, so either side can decrypt its own copy. The
// server stores and relays ciphertext only.
//
// Basic usage:
//
//	client, err := securedm.New("your-session-token")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// First run: generate and register a keypair
//	if _, err := client.Register(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Open a conversation with a peer
//	room, err := client.OpenRoom(ctx, "peer-user-id")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := room.Send(ctx, "hello"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Wait for the reply
//	msg, err := room.WaitForMessage(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(msg.Text)
package securedm
