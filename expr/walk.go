package expr

// Inspect 先序遍历，fn 返回 false 时不再进入子节点
func Inspect(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Parameter, *Constant:
	case *Member:
		Inspect(n.Base, fn)
	case *Unary:
		Inspect(n.Operand, fn)
	case *Binary:
		Inspect(n.Left, fn)
		Inspect(n.Right, fn)
	case *Call:
		Inspect(n.Target, fn)
		for _, a := range n.Args {
			Inspect(a, fn)
		}
	case *New:
		for _, a := range n.Args {
			Inspect(a, fn)
		}
	}
}

// References 子树是否引用了参数 p
func References(e Expr, p *Parameter) bool {
	found := false
	Inspect(e, func(n Expr) bool {
		if found {
			return false
		}
		if param, ok := n.(*Parameter); ok && param == p {
			found = true
		}
		return !found
	})
	return found
}

// HasParameter 子树是否引用了任意参数
func HasParameter(e Expr) bool {
	found := false
	Inspect(e, func(n Expr) bool {
		if _, ok := n.(*Parameter); ok {
			found = true
		}
		return !found
	})
	return found
}

// ContainsNew 子树是否包含对象构造
func ContainsNew(e Expr) bool {
	found := false
	Inspect(e, func(n Expr) bool {
		if _, ok := n.(*New); ok {
			found = true
		}
		return !found
	})
	return found
}
