package pdf

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"errors"
	"fmt"
)

// EncryptionType represents the PDF encryption algorithm
type EncryptionType int

const (
	EncryptionNone EncryptionType = iota
	EncryptionRC4_40
	EncryptionRC4_128
	EncryptionAES_128
)

// SecurityHandler implements the standard security handler, revisions 2
// to 4
type SecurityHandler struct {
	Type        EncryptionType
	Version     int // V value
	Revision    int // R value
	KeyLength   int // in bytes
	Permissions int32
	OwnerKey    []byte // O value
	UserKey     []byte // U value
	EncryptMeta bool
	FileID      []byte

	// crypt filter methods for streams and strings under V4
	streamMethod Name
	stringMethod Name

	dictNumber    int
	encryptionKey []byte
}

// passwordPadding pads passwords to 32 bytes
var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// ParseEncryption reads the Encrypt dictionary; it returns nil for an
// unencrypted document
func ParseEncryption(doc *Document) (*SecurityHandler, error) {
	encryptRef := doc.Trailer.Get("Encrypt")
	if encryptRef == nil {
		return nil, nil
	}
	dict, ok := resolveDict(doc, encryptRef)
	if !ok {
		return nil, errors.New("invalid Encrypt dictionary")
	}

	sh := &SecurityHandler{EncryptMeta: true, streamMethod: "V2", stringMethod: "V2"}
	if ref, ok := encryptRef.(Reference); ok {
		sh.dictNumber = ref.ObjectNumber
	}
	if filter, _ := dict.GetName("Filter"); filter != "Standard" {
		return nil, fmt.Errorf("unsupported security handler: %s", filter)
	}

	v, _ := dict.GetInt("V")
	r, _ := dict.GetInt("R")
	sh.Version, sh.Revision = int(v), int(r)
	sh.KeyLength = 5
	if length, ok := dict.GetInt("Length"); ok && sh.Version >= 2 {
		sh.KeyLength = int(length) / 8
	}
	p, _ := dict.GetInt("P")
	sh.Permissions = int32(p)
	if s, ok := dict.Get("O").(String); ok {
		sh.OwnerKey = s.Value
	}
	if s, ok := dict.Get("U").(String); ok {
		sh.UserKey = s.Value
	}
	if b, ok := dict.Get("EncryptMetadata").(Boolean); ok {
		sh.EncryptMeta = bool(b)
	}
	if id := doc.ID(); id != nil {
		if s, ok := id[0].(String); ok {
			sh.FileID = s.Value
		}
	}

	switch sh.Version {
	case 1:
		sh.Type = EncryptionRC4_40
	case 2, 3:
		sh.Type = EncryptionRC4_128
		if sh.KeyLength <= 5 {
			sh.Type = EncryptionRC4_40
		}
	case 4:
		sh.Type = EncryptionRC4_128
		sh.KeyLength = 16
		sh.streamMethod = sh.cryptMethod(dict, "StmF")
		sh.stringMethod = sh.cryptMethod(dict, "StrF")
		if sh.streamMethod == "AESV2" || sh.stringMethod == "AESV2" {
			sh.Type = EncryptionAES_128
		}
	default:
		return nil, fmt.Errorf("unsupported encryption version %d", sh.Version)
	}
	if sh.Revision < 2 || sh.Revision > 4 {
		return nil, fmt.Errorf("unsupported security handler revision %d", sh.Revision)
	}
	if sh.KeyLength < 5 || sh.KeyLength > 16 {
		return nil, fmt.Errorf("invalid key length %d", sh.KeyLength*8)
	}
	return sh, nil
}

// cryptMethod returns the CFM of the crypt filter named by key
func (sh *SecurityHandler) cryptMethod(dict Dictionary, key string) Name {
	name, ok := dict.GetName(key)
	if !ok || name == "Identity" {
		return "Identity"
	}
	cf, _ := dict.GetDict("CF")
	filter, _ := cf.GetDict(string(name))
	if cfm, ok := filter.GetName("CFM"); ok {
		return cfm
	}
	return "V2"
}

// Authenticate tries password as the owner password and then as the user
// password
func (sh *SecurityHandler) Authenticate(password string) (ok, owner bool) {
	if sh.authenticateOwner(password) {
		return true, true
	}
	if sh.authenticateUser(padPassword(password)) {
		return true, false
	}
	return false, false
}

// authenticateUser checks a padded user password
func (sh *SecurityHandler) authenticateUser(padded []byte) bool {
	key := sh.computeEncryptionKey(padded)
	computed := sh.computeUserKey(key)
	n := 32
	if sh.Revision >= 3 {
		n = 16
	}
	if len(sh.UserKey) < n || !bytes.Equal(computed[:n], sh.UserKey[:n]) {
		return false
	}
	sh.encryptionKey = key
	return true
}

// authenticateOwner recovers the user password from O and checks it
func (sh *SecurityHandler) authenticateOwner(password string) bool {
	key := ownerRC4Key(password, sh.Revision, sh.KeyLength)
	userPwd := append([]byte{}, sh.OwnerKey...)
	if sh.Revision >= 3 {
		for i := 19; i >= 0; i-- {
			rc4XOR(xorKey(key, byte(i)), userPwd)
		}
	} else {
		rc4XOR(key, userPwd)
	}
	if len(userPwd) > 32 {
		userPwd = userPwd[:32]
	}
	return sh.authenticateUser(padPassword(string(userPwd)))
}

// ownerRC4Key is the key used to build and to open the O entry
func ownerRC4Key(owner string, revision, keyLen int) []byte {
	hash := md5.Sum(padPassword(owner))
	if revision >= 3 {
		for i := 0; i < 50; i++ {
			hash = md5.Sum(hash[:])
		}
	}
	return hash[:keyLen]
}

// computeEncryptionKey derives the file key from a padded user password
func (sh *SecurityHandler) computeEncryptionKey(padded []byte) []byte {
	h := md5.New()
	h.Write(padded)
	h.Write(sh.OwnerKey)
	p := uint32(sh.Permissions)
	h.Write([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
	h.Write(sh.FileID)
	if sh.Revision >= 4 && !sh.EncryptMeta {
		h.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	}
	hash := h.Sum(nil)
	if sh.Revision >= 3 {
		for i := 0; i < 50; i++ {
			sum := md5.Sum(hash[:sh.KeyLength])
			hash = sum[:]
		}
	}
	return hash[:sh.KeyLength]
}

// computeUserKey computes the U entry for a file key
func (sh *SecurityHandler) computeUserKey(key []byte) []byte {
	if sh.Revision < 3 {
		out := append([]byte{}, passwordPadding...)
		rc4XOR(key, out)
		return out
	}
	h := md5.New()
	h.Write(passwordPadding)
	h.Write(sh.FileID)
	out := h.Sum(nil)
	for i := 0; i <= 19; i++ {
		rc4XOR(xorKey(key, byte(i)), out)
	}
	return append(out, make([]byte, 16)...)
}

func xorKey(key []byte, b byte) []byte {
	out := make([]byte, len(key))
	for i := range key {
		out[i] = key[i] ^ b
	}
	return out
}

func rc4XOR(key, data []byte) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return
	}
	c.XORKeyStream(data, data)
}

// objectKey computes the key for a specific object
func (sh *SecurityHandler) objectKey(objNum, genNum int, aes bool) []byte {
	h := md5.New()
	h.Write(sh.encryptionKey)
	h.Write([]byte{byte(objNum), byte(objNum >> 8), byte(objNum >> 16)})
	h.Write([]byte{byte(genNum), byte(genNum >> 8)})
	if aes {
		h.Write([]byte("sAlT"))
	}
	n := min(len(sh.encryptionKey)+5, 16)
	return h.Sum(nil)[:n]
}

func (sh *SecurityHandler) decrypt(data []byte, method Name, objNum, genNum int) []byte {
	switch method {
	case "Identity", "None":
		return data
	case "AESV2":
		out, err := decryptAES(data, sh.objectKey(objNum, genNum, true))
		if err != nil {
			return data
		}
		return out
	default:
		out := append([]byte{}, data...)
		rc4XOR(sh.objectKey(objNum, genNum, false), out)
		return out
	}
}

// decryptObject decrypts every string and the stream data of an object
func (sh *SecurityHandler) decryptObject(obj Object, objNum, genNum int) Object {
	switch v := obj.(type) {
	case String:
		return String{Value: sh.decrypt(v.Value, sh.stringMethod, objNum, genNum), IsHex: v.IsHex}
	case Array:
		out := make(Array, len(v))
		for i, item := range v {
			out[i] = sh.decryptObject(item, objNum, genNum)
		}
		return out
	case Dictionary:
		out := make(Dictionary, len(v))
		for k, item := range v {
			out[k] = sh.decryptObject(item, objNum, genNum)
		}
		return out
	case Stream:
		dict := sh.decryptObject(v.Dictionary, objNum, genNum).(Dictionary)
		if t, _ := v.Dictionary.GetName("Type"); t == "XRef" {
			return Stream{Dictionary: dict, Data: v.Data}
		}
		if t, _ := v.Dictionary.GetName("Type"); t == "Metadata" && !sh.EncryptMeta {
			return Stream{Dictionary: dict, Data: v.Data}
		}
		return Stream{Dictionary: dict, Data: sh.decrypt(v.Data, sh.streamMethod, objNum, genNum)}
	}
	return obj
}

// decryptAES decrypts data using AES-CBC with the IV in the first block
func decryptAES(data, key []byte) ([]byte, error) {
	if len(data) < 2*aes.BlockSize || len(data)%aes.BlockSize != 0 {
		return nil, errors.New("bad AES ciphertext length")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(data)-aes.BlockSize)
	cipher.NewCBCDecrypter(block, data[:aes.BlockSize]).CryptBlocks(plain, data[aes.BlockSize:])
	if pad := int(plain[len(plain)-1]); pad > 0 && pad <= aes.BlockSize && pad <= len(plain) {
		plain = plain[:len(plain)-pad]
	}
	return plain, nil
}

// padPassword pads a password to 32 bytes
func padPassword(password string) []byte {
	pwd := []byte(password)
	if len(pwd) > 32 {
		pwd = pwd[:32]
	}
	out := make([]byte, 32)
	copy(out, pwd)
	copy(out[len(pwd):], passwordPadding)
	return out
}

// EncryptOptions configures output encryption with RC4
type EncryptOptions struct {
	OwnerPassword string
	UserPassword  string
	// Permissions holds the granted permission bits
	Permissions uint32
	// Bits128 selects revision 3 with a 128-bit key; otherwise revision 2
	// with a 40-bit key is used
	Bits128 bool
}

// newEncryption builds a security handler and its Encrypt dictionary for
// a file identifier
func newEncryption(opts EncryptOptions, fileID []byte) (*SecurityHandler, Dictionary) {
	sh := &SecurityHandler{Version: 1, Revision: 2, KeyLength: 5, Type: EncryptionRC4_40, EncryptMeta: true, FileID: fileID}
	mask := uint32(0xffffffc0)
	if opts.Bits128 {
		sh.Version, sh.Revision, sh.KeyLength, sh.Type = 2, 3, 16, EncryptionRC4_128
		mask = 0xfffff0c0
	}
	sh.Permissions = int32((opts.Permissions | mask) & 0xfffffffc)

	owner := opts.OwnerPassword
	if owner == "" {
		owner = opts.UserPassword
	}
	key := ownerRC4Key(owner, sh.Revision, sh.KeyLength)
	o := padPassword(opts.UserPassword)
	rc4XOR(key, o)
	if sh.Revision >= 3 {
		for i := 1; i <= 19; i++ {
			rc4XOR(xorKey(key, byte(i)), o)
		}
	}
	sh.OwnerKey = o
	sh.encryptionKey = sh.computeEncryptionKey(padPassword(opts.UserPassword))
	sh.UserKey = sh.computeUserKey(sh.encryptionKey)

	dict := Dictionary{
		"Filter": Name("Standard"),
		"V":      Integer(sh.Version),
		"R":      Integer(sh.Revision),
		"Length": Integer(sh.KeyLength * 8),
		"P":      Integer(sh.Permissions),
		"O":      String{Value: sh.OwnerKey, IsHex: true},
		"U":      String{Value: sh.UserKey, IsHex: true},
	}
	return sh, dict
}

// encrypt encrypts data for an output object with RC4
func (sh *SecurityHandler) encrypt(data []byte, objNum, genNum int) []byte {
	out := append([]byte{}, data...)
	rc4XOR(sh.objectKey(objNum, genNum, false), out)
	return out
}

// newFileID returns a fresh random file identifier
func newFileID() []byte {
	id := make([]byte, 16)
	if _, err := rand.Read(id); err != nil {
		sum := md5.Sum([]byte(fmt.Sprint(&id)))
		copy(id, sum[:])
	}
	return id
}
