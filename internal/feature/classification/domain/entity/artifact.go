package entity

// Artifact はシリアライズされた計算グラフ（モデル）のバイト列です。
// 初期化時に一度だけ読み込まれ、以後は読み取り専用として複数リクエストで共有されます。
type Artifact struct {
	Name   string // 読み込んだファイル名
	Digest string // 内容のBLAKE2b-256ハッシュ（16進数）
	bytes  []byte
}

// NewArtifact はバイト列とダイジェストからArtifactを生成します。
// 呼び出し元は渡したスライスをその後変更してはいけません。
func NewArtifact(name, digest string, b []byte) *Artifact {
	return &Artifact{Name: name, Digest: digest, bytes: b}
}

// Bytes はグラフのバイト列を返します。返されたスライスは変更しないでください。
func (a *Artifact) Bytes() []byte {
	return a.bytes
}

// Size はバイト数を返します。
func (a *Artifact) Size() int {
	return len(a.bytes)
}
