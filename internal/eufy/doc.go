// Package eufy implements an authenticated, encrypted session client for the
// Eufy Security cloud API.
//
// The vendor protects its login and telemetry endpoints with an application
// layer on top of TLS:
//
//   - An ECDH handshake on P-256 derives a shared secret between an
//     ephemeral client keypair and the vendor's static public key.
//   - The account password, and many response bodies, are AES-256-CBC
//     encrypted with key material taken from that secret and carried as
//     base64 text.
//   - Login may be interrupted by a CAPTCHA challenge, answered once by a
//     pluggable Solver.
//
// Components:
//
//   - KeyPair / DeriveSharedSecret: ephemeral keys and ECDH
//   - Encrypt / Decrypt: the AES-CBC + PKCS#7 + base64 codec
//   - Solver / NoopSolver / ParseChallenge: CAPTCHA capability
//   - SessionManager: login state machine and TTL-bounded session cache
//   - Client: domain resolution, authenticated calls, device listing and
//     per-device parameters
//   - MapDevice: device record to a normalized Metric
//
// Typical cycle:
//
//	client := eufy.NewClient(eufy.ClientConfig{Country: "DE"})
//	sessions := eufy.NewSessionManager(client, eufy.SessionConfig{
//	    Email:    email,
//	    Password: password,
//	})
//	origin, err := client.ResolveDomain(ctx)
//	sess, err := sessions.Session(ctx, origin)
//	devices, err := client.ListDevices(ctx, sess)
//	for _, dev := range devices {
//	    metric := eufy.MapDevice(dev, time.Now())
//	    // ...
//	}
//
// Errors are classified by sentinel (ErrNetwork, ErrProtocol, ErrDecrypt,
// ErrInvalidPeerKey, ErrAuth, ErrAPI). ResetsSession tells the caller when
// the cached session must be discarded with SessionManager.Invalidate.
//
// The AES IV is the first 16 bytes of the AES key. This matches the vendor
// backend and cannot be changed without breaking the login.
package eufy
