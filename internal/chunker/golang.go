package chunker

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/dshills/coderag/pkg/types"
)

// chunkGo is the structural strategy for Go sources. One chunk per
// top-level function, method, and type declaration; const, var, and import
// declarations fold into the file-level module chunk.
func (c *Chunker) chunkGo(filePath, content string) ([]types.Chunk, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, content, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(content, "\n")
	var chunks []types.Chunk

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			chunk := c.goDeclChunk(fset, lines, declRange{
				node: d,
				doc:  d.Doc,
			})
			if chunk == nil {
				continue
			}
			chunk.ChunkType = types.ChunkFunction
			chunk.Metadata["name"] = d.Name.Name
			if recv := receiverType(d); recv != "" {
				chunk.Metadata["receiver"] = recv
			}
			if d.Doc != nil {
				chunk.Metadata["doc"] = strings.TrimSpace(d.Doc.Text())
			}
			chunks = append(chunks, *chunk)

		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				chunk := c.goDeclChunk(fset, lines, declRange{
					node: d,
					doc:  d.Doc,
				})
				if chunk == nil {
					continue
				}
				chunk.ChunkType = types.ChunkClass
				chunk.Metadata["name"] = ts.Name.Name
				doc := ts.Doc
				if doc == nil {
					doc = d.Doc
				}
				if doc != nil {
					chunk.Metadata["doc"] = strings.TrimSpace(doc.Text())
				}
				chunks = append(chunks, *chunk)
				break // grouped type decls share one chunk covering the decl
			}
		}
	}

	// A module chunk covers the whole file when nothing structural was
	// extracted, or when a significant share of the file lives outside the
	// extracted declarations (package docs, consts, vars, init wiring).
	covered := 0
	for _, ch := range chunks {
		covered += len(ch.Content)
	}
	if len(chunks) == 0 || len(content) > covered+covered/2 {
		module := types.Chunk{
			Content:   content,
			ChunkType: types.ChunkModule,
			StartLine: 1,
			EndLine:   len(lines),
			Metadata:  map[string]string{"package": file.Name.Name},
		}
		chunks = append([]types.Chunk{module}, chunks...)
	}

	return chunks, nil
}

type declRange struct {
	node ast.Node
	doc  *ast.CommentGroup
}

// goDeclChunk extracts the source range of a declaration including its
// leading doc comment.
func (c *Chunker) goDeclChunk(fset *token.FileSet, lines []string, dr declRange) *types.Chunk {
	start := fset.Position(dr.node.Pos()).Line
	if dr.doc != nil {
		start = fset.Position(dr.doc.Pos()).Line
	}
	end := fset.Position(dr.node.End()).Line

	if start <= 0 || end < start || start > len(lines) {
		return nil
	}
	if end > len(lines) {
		end = len(lines)
	}

	content := strings.Join(lines[start-1:end], "\n")

	// Oversized declarations fall through to the module chunk rather than
	// producing an unembeddable chunk.
	if len(content) > c.windowSize*2 {
		return nil
	}

	return &types.Chunk{
		Content:   content,
		StartLine: start,
		EndLine:   end,
		Metadata:  map[string]string{},
	}
}

// receiverType returns the receiver type name of a method declaration.
func receiverType(d *ast.FuncDecl) string {
	if d.Recv == nil || len(d.Recv.List) == 0 {
		return ""
	}
	switch t := d.Recv.List[0].Type.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		if ident, ok := t.X.(*ast.Ident); ok {
			return ident.Name
		}
		if idx, ok := t.X.(*ast.IndexExpr); ok {
			if ident, ok := idx.X.(*ast.Ident); ok {
				return ident.Name
			}
		}
	case *ast.IndexExpr:
		if ident, ok := t.X.(*ast.Ident); ok {
			return ident.Name
		}
	}
	return ""
}
