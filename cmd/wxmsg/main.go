package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/wxmsg/archive"
	"xdao.co/wxmsg/archive/archiveconfig"
	"xdao.co/wxmsg/archive/bundle"
	"xdao.co/wxmsg/archive/localfs"
	"xdao.co/wxmsg/cidutil"
	"xdao.co/wxmsg/credentials"
	"xdao.co/wxmsg/messages"
	"xdao.co/wxmsg/pay"
	"xdao.co/wxmsg/replies"
	"xdao.co/wxmsg/signer"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "archive":
		return cmdArchive(args[1:], out, errOut)
	case "doc-cid":
		return cmdDocCID(args[1:], out, errOut)
	case "jsapi-sign":
		return cmdJSAPISign(args[1:], out, errOut)
	case "merchant":
		return cmdMerchant(args[1:], out, errOut)
	case "nonce":
		_, _ = fmt.Fprintln(out, pay.NonceStr())
		return 0
	case "parse":
		return cmdParse(args[1:], out, errOut)
	case "reply":
		return cmdReply(args[1:], out, errOut)
	case "rsa":
		return cmdRSA(args[1:], out, errOut)
	case "sign":
		return cmdSign(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "wxmsg: WeChat message and payment toolkit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  wxmsg sign (--key <api key> | --merchant <name>) [--sign-type MD5|HMAC-SHA256] [--xml] k=v [k=v ...]")
	fmt.Fprintln(w, "  wxmsg verify (--key <api key> | --merchant <name>) <notification.xml>")
	fmt.Fprintln(w, "  wxmsg parse <message.xml>")
	fmt.Fprintln(w, "  wxmsg reply --to <message.xml> (--text <s> | --image <media id> | --voice <media id> | --transfer)")
	fmt.Fprintln(w, "  wxmsg rsa encrypt (--pub <public.pem> | --merchant <name>) <plaintext>")
	fmt.Fprintln(w, "  wxmsg rsa decrypt (--key <private.pem> | --merchant <name>) [--password <p>] <base64 ciphertext>")
	fmt.Fprintln(w, "  wxmsg rsa protect-key --key <private.pem> --password <p>")
	fmt.Fprintln(w, "  wxmsg jsapi-sign --ticket <t> --noncestr <n> --timestamp <ts> --url <u>")
	fmt.Fprintln(w, "  wxmsg merchant init --name <name> --api-key <key> [--force]")
	fmt.Fprintln(w, "  wxmsg merchant import-key --name <name> (--private <pem> [--password <p>] | --public <pem>) [--force]")
	fmt.Fprintln(w, "  wxmsg merchant import-p12 --name <name> --p12 <apiclient_cert.p12> --password <merchant id> [--force]")
	fmt.Fprintln(w, "  wxmsg merchant list")
	fmt.Fprintln(w, "  wxmsg nonce")
	fmt.Fprintln(w, "  wxmsg doc-cid <file>")
	fmt.Fprintln(w, "  wxmsg archive (put <file> | get <cid> | export --out <tar> <cid> ... | import <tar>) (--dir <dir> | --config <archive.json>)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - sign prints the uppercase hex signature; --xml prints the signed <xml> body instead")
	fmt.Fprintln(w, "  - verify exits 1 when the signature does not match")
	fmt.Fprintln(w, "  - parse prints the message type and its decoded fields as JSON")
	fmt.Fprintln(w, "  - merchant credentials live under ~/.wxmsg/merchants/<name> (0600 files); --store overrides the directory")
}

func cmdSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var signType string
	var asXML bool
	cred := credentialFlags(fs)
	fs.StringVar(&signType, "sign-type", pay.SignTypeMD5, "MD5 or HMAC-SHA256")
	fs.BoolVar(&asXML, "xml", false, "Print the signed <xml> request body")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(errOut, "usage: wxmsg sign (--key <api key> | --merchant <name>) [--sign-type MD5|HMAC-SHA256] [--xml] k=v [k=v ...]")
		return 2
	}
	key, err := cred.apiKey()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	params := make(map[string]any, fs.NArg())
	for _, kv := range fs.Args() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			fmt.Fprintf(errOut, "invalid parameter %q (want key=value)\n", kv)
			return 2
		}
		params[k] = v
	}
	if signType != pay.SignTypeMD5 {
		params["sign_type"] = signType
	}
	sign, err := pay.Sign(params, key, signType)
	if err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	if asXML {
		_, _ = fmt.Fprintln(out, pay.DictToXML(params, sign))
		return 0
	}
	_, _ = fmt.Fprintln(out, sign)
	return 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	cred := credentialFlags(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: wxmsg verify (--key <api key> | --merchant <name>) <notification.xml>")
		return 2
	}
	key, err := cred.apiKey()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	b, err := readInput(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read notification: %v\n", err)
		return 1
	}
	if _, err := pay.ParsePaymentResult(b, key); err != nil {
		fmt.Fprintf(errOut, "invalid (%s): %v\n", pay.RuleID(err), err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

func cmdParse(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("parse", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: wxmsg parse <message.xml>")
		return 2
	}
	msg, code := readMessage(fs.Arg(0), errOut)
	if msg == nil {
		return code
	}

	decoded := map[string]any{}
	obj := msg.Fields()
	for _, e := range obj.Schema().Entries() {
		if _, present := obj.Data()[e.Field.Name()]; !present {
			continue
		}
		v, err := obj.Get(e.Key)
		if err != nil {
			fmt.Fprintf(errOut, "field %s: %v\n", e.Key, err)
			return 1
		}
		decoded[e.Key] = v
	}
	b, err := json.MarshalIndent(map[string]any{"type": msg.Type(), "fields": decoded}, "", "  ")
	if err != nil {
		fmt.Fprintf(errOut, "encode: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, string(b))
	return 0
}

func cmdReply(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("reply", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var to, text, image, voice string
	var transfer bool
	fs.StringVar(&to, "to", "", "Message file being answered")
	fs.StringVar(&text, "text", "", "Text reply content")
	fs.StringVar(&image, "image", "", "Image reply media id")
	fs.StringVar(&voice, "voice", "", "Voice reply media id")
	fs.BoolVar(&transfer, "transfer", false, "Transfer the conversation to customer service")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if to == "" {
		fmt.Fprintln(errOut, "usage: wxmsg reply --to <message.xml> (--text <s> | --image <media id> | --voice <media id> | --transfer)")
		return 2
	}

	var r replies.Reply
	switch {
	case text != "":
		r = replies.NewText(text)
	case image != "":
		r = replies.NewImage(image)
	case voice != "":
		r = replies.NewVoice(voice)
	case transfer:
		r = replies.NewTransferCustomerService()
	default:
		fmt.Fprintln(errOut, "reply: one of --text, --image, --voice or --transfer is required")
		return 2
	}

	msg, code := readMessage(to, errOut)
	if msg == nil {
		return code
	}
	s, err := replies.ReplyTo(msg, r).Render()
	if err != nil {
		fmt.Fprintf(errOut, "render: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, s)
	return 0
}

func cmdRSA(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: wxmsg rsa <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: encrypt, decrypt, protect-key")
		return 2
	}
	fs := flag.NewFlagSet("rsa "+args[0], flag.ContinueOnError)
	fs.SetOutput(errOut)
	var pubPath, keyPath, merchant, storeDir, password string
	fs.StringVar(&pubPath, "pub", "", "Public key PEM file")
	fs.StringVar(&keyPath, "key", "", "Private key PEM file")
	fs.StringVar(&merchant, "merchant", "", "Use keys stored for this merchant")
	fs.StringVar(&storeDir, "store", "", "Credential store directory (default ~/.wxmsg/merchants)")
	fs.StringVar(&password, "password", "", "Private key password")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	var pw []byte
	if password != "" {
		pw = []byte(password)
	}
	loadPEM := func(path string, k credentials.Kind) ([]byte, error) {
		if path != "" {
			return os.ReadFile(path)
		}
		store, err := credentials.Open(storeDir)
		if err != nil {
			return nil, err
		}
		return store.Load(merchant, k)
	}

	switch args[0] {
	case "encrypt":
		if (pubPath == "" && merchant == "") || fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: wxmsg rsa encrypt (--pub <public.pem> | --merchant <name>) <plaintext>")
			return 2
		}
		pem, err := loadPEM(pubPath, credentials.KindPublicKey)
		if err != nil {
			fmt.Fprintf(errOut, "read public key: %v\n", err)
			return 1
		}
		ct, err := pay.RSAEncrypt([]byte(fs.Arg(0)), pem)
		if err != nil {
			fmt.Fprintf(errOut, "encrypt: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, ct)
		return 0
	case "decrypt":
		if (keyPath == "" && merchant == "") || fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: wxmsg rsa decrypt (--key <private.pem> | --merchant <name>) [--password <p>] <base64 ciphertext>")
			return 2
		}
		pem, err := loadPEM(keyPath, credentials.KindPrivateKey)
		if err != nil {
			fmt.Fprintf(errOut, "read private key: %v\n", err)
			return 1
		}
		pt, err := pay.RSADecryptBase64(fs.Arg(0), pem, pw)
		if err != nil {
			fmt.Fprintf(errOut, "decrypt: %v\n", err)
			return 1
		}
		_, _ = out.Write(pt)
		return 0
	case "protect-key":
		if keyPath == "" || pw == nil {
			fmt.Fprintln(errOut, "usage: wxmsg rsa protect-key --key <private.pem> --password <p>")
			return 2
		}
		pem, err := os.ReadFile(keyPath)
		if err != nil {
			fmt.Fprintf(errOut, "read --key: %v\n", err)
			return 1
		}
		key, err := pay.ParsePrivateKey(pem, nil)
		if err != nil {
			fmt.Fprintf(errOut, "parse key: %v\n", err)
			return 1
		}
		protected, err := pay.EncryptPrivateKey(key, pw)
		if err != nil {
			fmt.Fprintf(errOut, "encrypt key: %v\n", err)
			return 1
		}
		_, _ = out.Write(protected)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown rsa subcommand: %s\n", args[0])
		return 2
	}
}

func cmdMerchant(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: wxmsg merchant <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: init, import-key, import-p12, list")
		return 2
	}
	fs := flag.NewFlagSet("merchant "+args[0], flag.ContinueOnError)
	fs.SetOutput(errOut)
	var storeDir, name, apiKey, privPath, pubPath, p12Path, password string
	var force bool
	fs.StringVar(&storeDir, "store", "", "Credential store directory (default ~/.wxmsg/merchants)")
	fs.StringVar(&name, "name", "", "Merchant name")
	fs.StringVar(&apiKey, "api-key", "", "Merchant API key")
	fs.StringVar(&privPath, "private", "", "Merchant private key PEM file")
	fs.StringVar(&pubPath, "public", "", "Platform public key PEM file")
	fs.StringVar(&p12Path, "p12", "", "Merchant certificate bundle (apiclient_cert.p12)")
	fs.StringVar(&password, "password", "", "Password of an encrypted --private key or of --p12 (the merchant ID)")
	fs.BoolVar(&force, "force", false, "Overwrite existing credentials")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	store, err := credentials.Open(storeDir)
	if err != nil {
		fmt.Fprintf(errOut, "credential store: %v\n", err)
		return 1
	}

	switch args[0] {
	case "init":
		if name == "" || apiKey == "" {
			fmt.Fprintln(errOut, "usage: wxmsg merchant init --name <name> --api-key <key> [--force]")
			return 2
		}
		path, err := store.SaveAPIKey(name, apiKey, force)
		if err != nil {
			fmt.Fprintf(errOut, "save api key: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, path)
		return 0
	case "import-key":
		if name == "" || (privPath == "") == (pubPath == "") {
			fmt.Fprintln(errOut, "usage: wxmsg merchant import-key --name <name> (--private <pem> [--password <p>] | --public <pem>) [--force]")
			return 2
		}
		kind, path := credentials.KindPublicKey, pubPath
		if privPath != "" {
			kind, path = credentials.KindPrivateKey, privPath
		}
		pem, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(errOut, "read key: %v\n", err)
			return 1
		}
		var pw []byte
		if password != "" {
			pw = []byte(password)
		}
		saved, err := store.SavePEM(name, kind, pem, pw, force)
		if err != nil {
			fmt.Fprintf(errOut, "save key: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, saved)
		return 0
	case "import-p12":
		if name == "" || p12Path == "" || password == "" {
			fmt.Fprintln(errOut, "usage: wxmsg merchant import-p12 --name <name> --p12 <apiclient_cert.p12> --password <merchant id> [--force]")
			return 2
		}
		data, err := os.ReadFile(p12Path)
		if err != nil {
			fmt.Fprintf(errOut, "read --p12: %v\n", err)
			return 1
		}
		saved, serial, err := store.ImportPKCS12(name, data, password, force)
		if err != nil {
			fmt.Fprintf(errOut, "import p12: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintf(out, "%s\nserial %s\n", saved, serial)
		return 0
	case "list":
		merchants, err := store.List()
		if err != nil {
			fmt.Fprintf(errOut, "list: %v\n", err)
			return 1
		}
		for _, m := range merchants {
			kinds := make([]string, 0, len(m.Kinds))
			for _, k := range m.Kinds {
				kinds = append(kinds, string(k))
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", m.Name, strings.Join(kinds, ","))
		}
		return 0
	default:
		fmt.Fprintf(errOut, "unknown merchant subcommand: %s\n", args[0])
		return 2
	}
}

// credFlags resolves the merchant API key from --key or the credential store.
type credFlags struct {
	key, merchant, store string
}

func credentialFlags(fs *flag.FlagSet) *credFlags {
	c := &credFlags{}
	fs.StringVar(&c.key, "key", "", "Merchant API key")
	fs.StringVar(&c.merchant, "merchant", "", "Use the API key stored for this merchant")
	fs.StringVar(&c.store, "store", "", "Credential store directory (default ~/.wxmsg/merchants)")
	return c
}

func (c *credFlags) apiKey() (string, error) {
	switch {
	case c.key != "" && c.merchant != "":
		return "", errors.New("--key and --merchant are mutually exclusive")
	case c.key != "":
		return c.key, nil
	case c.merchant != "":
		store, err := credentials.Open(c.store)
		if err != nil {
			return "", err
		}
		return store.APIKey(c.merchant)
	default:
		return "", errors.New("one of --key or --merchant is required")
	}
}

func cmdJSAPISign(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("jsapi-sign", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var ticket, nonce, timestamp, url string
	fs.StringVar(&ticket, "ticket", "", "jsapi_ticket")
	fs.StringVar(&nonce, "noncestr", "", "Nonce string")
	fs.StringVar(&timestamp, "timestamp", "", "Unix timestamp")
	fs.StringVar(&url, "url", "", "Page URL without fragment")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if ticket == "" || nonce == "" || timestamp == "" || url == "" {
		fmt.Fprintln(errOut, "usage: wxmsg jsapi-sign --ticket <t> --noncestr <n> --timestamp <ts> --url <u>")
		return 2
	}
	_, _ = fmt.Fprintln(out, signer.JSAPISignature(nonce, ticket, timestamp, url))
	return 0
}

func cmdDocCID(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "usage: wxmsg doc-cid <file>")
		return 2
	}
	b, err := readInput(args[0])
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	id, err := cidutil.DocumentID(b)
	if err != nil {
		fmt.Fprintf(errOut, "cid: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id)
	return 0
}

func cmdArchive(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: wxmsg archive <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: put, get, export, import")
		return 2
	}
	fs := flag.NewFlagSet("archive "+args[0], flag.ContinueOnError)
	fs.SetOutput(errOut)
	var dir, configPath, outPath string
	fs.StringVar(&dir, "dir", "", "Local archive directory")
	fs.StringVar(&configPath, "config", "", "Archive JSON config")
	fs.StringVar(&outPath, "out", "", "Bundle output file (export)")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	store, closeFn, err := openArchive(dir, configPath)
	if err != nil {
		fmt.Fprintf(errOut, "open archive: %v\n", err)
		return 2
	}
	defer closeFn()
	ctx := context.Background()

	switch args[0] {
	case "put":
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: wxmsg archive put <file>")
			return 2
		}
		b, err := readInput(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "read: %v\n", err)
			return 1
		}
		id, err := store.Put(ctx, b)
		if err != nil {
			fmt.Fprintf(errOut, "put: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, id)
		return 0
	case "get":
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: wxmsg archive get <cid>")
			return 2
		}
		id, err := cidutil.Parse(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "invalid cid: %v\n", err)
			return 2
		}
		b, err := store.Get(ctx, id)
		if err != nil {
			fmt.Fprintf(errOut, "get: %v\n", err)
			return 1
		}
		_, _ = out.Write(b)
		return 0
	case "export":
		if outPath == "" || fs.NArg() == 0 {
			fmt.Fprintln(errOut, "usage: wxmsg archive export --out <tar> <cid> [<cid> ...]")
			return 2
		}
		ids := make([]cid.Cid, 0, fs.NArg())
		for _, s := range fs.Args() {
			id, err := cidutil.Parse(s)
			if err != nil {
				fmt.Fprintf(errOut, "invalid cid %q: %v\n", s, err)
				return 2
			}
			ids = append(ids, id)
		}
		var buf bytes.Buffer
		if err := bundle.Export(ctx, &buf, store, ids, bundle.ExportOptions{IncludeIndex: true}); err != nil {
			fmt.Fprintf(errOut, "export: %v\n", err)
			return 1
		}
		if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
			fmt.Fprintf(errOut, "write --out: %v\n", err)
			return 1
		}
		return 0
	case "import":
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: wxmsg archive import <tar>")
			return 2
		}
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "open bundle: %v\n", err)
			return 1
		}
		defer f.Close()
		ids, err := bundle.Import(ctx, f, store, bundle.ImportOptions{})
		if err != nil {
			fmt.Fprintf(errOut, "import: %v\n", err)
			return 1
		}
		for _, id := range ids {
			_, _ = fmt.Fprintln(out, id)
		}
		return 0
	default:
		fmt.Fprintf(errOut, "unknown archive subcommand: %s\n", args[0])
		return 2
	}
}

func openArchive(dir, configPath string) (archive.Store, func() error, error) {
	switch {
	case dir != "" && configPath != "":
		return nil, nil, errors.New("--dir and --config are mutually exclusive")
	case dir != "":
		s, err := localfs.New(dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	case configPath != "":
		cfg, err := archiveconfig.LoadFile(configPath)
		if err != nil {
			return nil, nil, err
		}
		return cfg.Open()
	default:
		return nil, nil, errors.New("one of --dir or --config is required")
	}
}

func readMessage(path string, errOut io.Writer) (messages.Message, int) {
	b, err := readInput(path)
	if err != nil {
		fmt.Fprintf(errOut, "read message: %v\n", err)
		return nil, 1
	}
	msg, err := messages.Parse(b)
	if err != nil {
		fmt.Fprintf(errOut, "invalid message (%s): %v\n", messages.RuleID(err), err)
		return nil, 1
	}
	return msg, 0
}

// readInput reads path, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
