package parser

import (
	"strings"

	"github.com/jward/phpindex/internal/lexer"
)

var (
	classModifiers  = []string{"abstract", "final"}
	methodModifiers = []string{"static", "abstract", "final", "public", "protected", "private"}
	memberModifiers = []string{"var", "public", "protected", "private", "static", "abstract"}
	visibilities    = []string{"public", "protected", "private"}
)

// firstUnclassified returns the first plain block opening after site.
func (p *parser) firstUnclassified(site int) *Block {
	for _, b := range p.blocks {
		if b.Begin > site && b.Kind == Plain && b.Site < 0 {
			return b
		}
	}
	return nil
}

func (p *parser) assignClasses() {
	for _, site := range p.classSites {
		if b := p.firstUnclassified(site); b != nil {
			b.Kind = ClassBlock
			b.Site = site
			b.Class = &ClassInfo{Type: p.at(site).Lower(), NameIndex: -1}
		}
	}
}

func (p *parser) assignRoutines() {
	for _, site := range p.functionSites {
		b := p.firstUnclassified(site)
		if b == nil {
			continue
		}
		nameIdx := site + 1
		if p.isChar(nameIdx, "&") {
			nameIdx++
		}
		b.Site = site
		b.Routine = &RoutineInfo{NameIndex: -1, Visibility: "public"}
		named := p.at(nameIdx).Kind == lexer.Ident
		if named {
			b.Routine.Name = p.at(nameIdx).Text
			b.Routine.NameIndex = nameIdx
		}
		parent := EnclosingBlock(p.blocks, b.Begin)
		if named && parent != nil && parent.Kind == ClassBlock {
			b.Kind = MethodBlock
		} else {
			b.Kind = FunctionBlock
		}
	}
}

// memberIndices finds member variables: directly inside a class block,
// outside every method (signature included), and introduced by a member
// modifier, possibly followed by a type.
func (p *parser) memberIndices() map[*Block][]Member {
	out := map[*Block][]Member{}
	for _, v := range p.variables {
		cls := EnclosingBlock(p.blocks, v)
		if cls == nil || cls.Kind != ClassBlock || p.inMethod(v) {
			continue
		}
		j := v - 1
		var typeParts []string
		for p.isTypeToken(j) && !p.isKeyword(j, "static") {
			typeParts = append([]string{p.at(j).Text}, typeParts...)
			j--
		}
		if !p.isKeyword(j, memberModifiers...) {
			continue
		}
		m := Member{Index: v, Name: p.at(v).Text, TypeHint: strings.Join(typeParts, ""), Visibility: "public"}
		for p.isKeyword(j, memberModifiers...) || p.isReadonly(j) {
			switch {
			case p.isKeyword(j, visibilities...):
				m.Visibility = p.at(j).Lower()
			case p.isKeyword(j, "static"):
				m.Static = true
			}
			j--
		}
		if c := LeadingComment(p.comments, j+1); c != nil {
			m.DocComment = c.Text
		}
		out[cls] = append(out[cls], m)
	}
	return out
}

func (p *parser) inMethod(idx int) bool {
	for _, b := range p.blocks {
		if b.Kind == MethodBlock && idx > b.Site && idx < b.End {
			return true
		}
	}
	return false
}

func (p *parser) isReadonly(i int) bool {
	t := p.at(i)
	return t.Kind == lexer.Ident && strings.EqualFold(t.Text, "readonly")
}

// isTypeToken reports whether token i can be part of a type declaration.
func (p *parser) isTypeToken(i int) bool {
	t := p.at(i)
	if t.Kind == lexer.Ident {
		return !p.isReadonly(i)
	}
	return p.isChar(i, "?", "|") || p.isKeyword(i, "array", "callable", "static")
}

func (p *parser) enrichClasses(members map[*Block][]Member) {
	for _, b := range p.blocks {
		if b.Kind != ClassBlock {
			continue
		}
		info := b.Class

		j := b.Site - 1
		for p.isKeyword(j, classModifiers...) || p.isReadonly(j) {
			switch {
			case p.isKeyword(j, "abstract"):
				info.Abstract = true
			case p.isKeyword(j, "final"):
				info.Final = true
			}
			j--
		}
		if c := LeadingComment(p.comments, j+1); c != nil {
			info.DocComment = c.Text
		}

		k := b.Site + 1
		if p.at(k).Kind == lexer.Ident {
			info.Name = p.at(k).Text
			info.NameIndex = k
			k++
		} else if p.isChar(k, "(") {
			if end := MatchingBracket(p.tokens, k); end > 0 {
				k = end + 1
			}
		}

		if p.isKeyword(k, "extends") {
			names, next := p.nameList(k + 1)
			if len(names) > 0 {
				info.Parent = names[0]
				info.Interfaces = append(info.Interfaces, names[1:]...)
			}
			k = next
		}
		if p.isKeyword(k, "implements") {
			names, _ := p.nameList(k + 1)
			info.Interfaces = append(info.Interfaces, names...)
		}

		info.Members = members[b]

		for _, site := range p.constSites {
			if EnclosingBlock(p.blocks, site) != b {
				continue
			}
			doc := ""
			first := site - 1
			for p.isKeyword(first, methodModifiers...) {
				first--
			}
			if c := LeadingComment(p.comments, first+1); c != nil {
				doc = c.Text
			}
			for _, idx := range p.constNames(site) {
				info.Constants = append(info.Constants, ClassConstant{Index: idx, Name: p.at(idx).Text, DocComment: doc})
			}
		}

		for _, u := range p.innerUses {
			if EnclosingBlock(p.blocks, u) != b {
				continue
			}
			names, _ := p.nameList(u + 1)
			info.Traits = append(info.Traits, names...)
		}
	}
}

// nameList reads a comma separated list of names starting at i and returns
// the names and the index after the list.
func (p *parser) nameList(i int) ([]string, int) {
	var names []string
	for p.at(i).Kind == lexer.Ident {
		names = append(names, p.at(i).Text)
		i++
		if !p.isChar(i, ",") {
			break
		}
		i++
	}
	return names, i
}

// constNames returns the token indices of the names declared by the const
// statement at site, typed constants included.
func (p *parser) constNames(site int) []int {
	var names []int
	j := site + 1
	for j < len(p.tokens) {
		switch {
		case p.at(j).Kind == lexer.Ident && p.isChar(j+1, "="):
			names = append(names, j)
		case p.isTypeToken(j) && p.at(j+1).Kind == lexer.Ident && p.isChar(j+2, "="):
			j++
			names = append(names, j)
		default:
			return names
		}
		j += 2
		j = p.skipExpression(j)
		if !p.isChar(j, ",") {
			return names
		}
		j++
	}
	return names
}

// skipExpression advances to the first "," or ";" (or closing bracket) at
// nesting depth zero.
func (p *parser) skipExpression(j int) int {
	depth := 0
	for ; j < len(p.tokens); j++ {
		switch {
		case p.isChar(j, "(", "[", "{"):
			depth++
		case p.isChar(j, ")", "]", "}"):
			if depth == 0 {
				return j
			}
			depth--
		case depth == 0 && p.isChar(j, ",", ";"):
			return j
		}
	}
	return j
}

func (p *parser) enrichRoutines() {
	for _, b := range p.blocks {
		if b.Kind != MethodBlock && b.Kind != FunctionBlock {
			continue
		}
		r := b.Routine
		open := b.Site + 1
		if r.NameIndex >= 0 {
			open = r.NameIndex + 1
		} else if p.isChar(open, "&") {
			open++
		}
		if !p.isChar(open, "(") {
			continue
		}
		var closeIdx int
		r.Args, closeIdx = p.parseArgs(open)
		if p.isChar(closeIdx+1, ":") {
			var sb strings.Builder
			for j := closeIdx + 2; p.isTypeToken(j); j++ {
				sb.WriteString(p.at(j).Text)
			}
			r.ReturnType = sb.String()
		}
		if b.Kind == FunctionBlock {
			if c := LeadingComment(p.comments, b.Site); c != nil {
				r.DocComment = c.Text
			}
		}
	}
}

// parseArgs reads the parameter list whose "(" is at open. Default values
// are captured as concatenated token text with balanced brackets. It
// returns the arguments and the index of the closing ")".
func (p *parser) parseArgs(open int) ([]Argument, int) {
	var args []Argument
	i := open + 1
	for i < len(p.tokens) && !p.isChar(i, ")") {
		start := i
		var arg Argument
		for {
			if p.isKeyword(i, visibilities...) || p.isReadonly(i) {
				i++
				continue
			}
			if p.isChar(i, "#") && p.isChar(i+1, "[") {
				if end := MatchingBracket(p.tokens, i+1); end > 0 {
					i = end + 1
					continue
				}
			}
			break
		}
		var typ strings.Builder
		for p.isTypeToken(i) {
			typ.WriteString(p.at(i).Text)
			i++
		}
		arg.TypeHint = typ.String()
		for p.isChar(i, "&", "...") {
			i++
		}
		if p.at(i).Kind == lexer.Variable {
			arg.Name = p.at(i).Text
			i++
		}
		if p.isChar(i, "=") {
			i++
			end := p.skipExpression(i)
			var def strings.Builder
			for j := i; j < end; j++ {
				def.WriteString(p.at(j).Text)
			}
			arg.Default = def.String()
			arg.HasDefault = true
			i = end
		}
		if arg.Name != "" || arg.TypeHint != "" {
			args = append(args, arg)
		}
		if p.isChar(i, ",") {
			i++
			continue
		}
		if i == start {
			i++
		}
		if !p.isChar(i, ")") {
			// unexpected token; resynchronize on the closing parenthesis
			if end := MatchingBracket(p.tokens, open); end > 0 {
				i = end
			}
			break
		}
	}
	return args, i
}

func (p *parser) enrichMethods() {
	for _, b := range p.blocks {
		if b.Kind != MethodBlock {
			continue
		}
		r := b.Routine
		j := b.Site - 1
		for p.isKeyword(j, methodModifiers...) {
			mod := p.at(j).Lower()
			r.Modifiers = append([]string{mod}, r.Modifiers...)
			switch mod {
			case "public", "protected", "private":
				r.Visibility = mod
			case "static":
				r.Static = true
			case "abstract":
				r.Abstract = true
			case "final":
				r.Final = true
			}
			j--
		}
		if c := LeadingComment(p.comments, j+1); c != nil {
			r.DocComment = c.Text
		}
		if cls := EnclosingBlock(p.blocks, b.Begin, ClassBlock); cls != nil {
			r.Class = cls.Class.Name
		}
	}
}

// useLowerBound is the exclusive lower bound for attaching uses to b.
// Routines start after their name rather than at their body, so parameter
// and return type hints in the signature are uses of the routine while the
// declared name itself never counts as a use.
func useLowerBound(b *Block) int {
	if b.Routine != nil {
		if b.Routine.NameIndex >= 0 {
			return b.Routine.NameIndex
		}
		return b.Site
	}
	return b.Begin
}

func (p *parser) assignUses() {
	for _, u := range p.uses {
		var inner *Block
		innerLower := -1
		for _, b := range p.blocks {
			if b.Begin == b.End && b.Routine == nil {
				continue
			}
			lower := useLowerBound(b)
			if u.TokenIndex > lower && u.TokenIndex < b.End && lower > innerLower {
				inner, innerLower = b, lower
			}
		}
		if inner != nil {
			inner.Uses = append(inner.Uses, u)
		}
	}
	p.res.Uses = p.uses
}

func (p *parser) collectConstants() {
	for i, tok := range p.tokens {
		if tok.Kind == lexer.Ident && strings.EqualFold(tok.Text, "define") &&
			p.isChar(i+1, "(") && p.at(i+2).Kind == lexer.ConstantString {
			if name := unquote(p.at(i + 2).Text); name != "" {
				p.res.Constants = append(p.res.Constants, ConstantSite{Name: name, TokenIndex: i + 2})
			}
		}
		if p.isKeyword(i, "const") && EnclosingBlock(p.blocks, i, ClassBlock, MethodBlock, FunctionBlock) == nil {
			for _, idx := range p.constNames(i) {
				p.res.Constants = append(p.res.Constants, ConstantSite{Name: p.at(idx).Text, TokenIndex: idx})
			}
		}
	}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
